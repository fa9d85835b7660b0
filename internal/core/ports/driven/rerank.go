package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Reranker reorders retrieval results for a query.
// Implementations return a permutation of the input; anything else is an error.
type Reranker interface {
	// Rerank returns results in the new order.
	Rerank(ctx context.Context, query string, results []domain.RetrievalResult) ([]domain.RetrievalResult, error)

	// Enabled reports whether this reranker changes anything.
	Enabled() bool
}

// Synthesizer generates a natural-language answer from retrieval results.
type Synthesizer interface {
	// Synthesize answers query using results, shaped by responsePattern.
	// responsePattern is a prompt name or a literal template; empty uses the default.
	Synthesize(ctx context.Context, query string, results []domain.RetrievalResult, responsePattern string) (string, error)

	// Enabled reports whether this synthesizer produces output.
	Enabled() bool
}
