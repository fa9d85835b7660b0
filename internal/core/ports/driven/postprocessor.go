package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// PostProcessor turns a chapter into chunks or refines chunks.
// PostProcessors are chained in a pipeline (e.g., chunking, then embedding).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a chapter and the chunks produced so far.
	// A creating processor (chunker) receives nil and returns new chunks.
	// A refining processor (embedder) receives and returns chunks.
	Process(ctx context.Context, input *domain.ChapterInput, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the chapter through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, input *domain.ChapterInput) ([]domain.Chunk, error)
}
