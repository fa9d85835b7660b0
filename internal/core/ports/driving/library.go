package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// LibraryService lists what has been ingested.
type LibraryService interface {
	// ListBooks returns manifest entries, most recent first.
	ListBooks(ctx context.Context) ([]domain.ManifestEntry, error)

	// ListCollections returns every vector store collection.
	ListCollections(ctx context.Context) ([]domain.CollectionInfo, error)
}
