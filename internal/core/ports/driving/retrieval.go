package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService answers queries against a collection.
type RetrievalService interface {
	// Retrieve returns similarity-ordered passages with context expansion.
	// Rerank and synthesis failures are reported on the response, never returned.
	Retrieve(ctx context.Context, query string, params domain.RetrievalParams) (*domain.RetrievalResponse, error)
}
