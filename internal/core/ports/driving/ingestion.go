package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IngestionService chunks, embeds and stores books.
type IngestionService interface {
	// Ingest runs one book through chunking and upload.
	// A partial upload returns the report together with a *domain.PartialUploadError.
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestionReport, error)
}
