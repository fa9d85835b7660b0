package services

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure LibraryService implements the interface.
var _ driving.LibraryService = (*LibraryService)(nil)

// LibraryService reports ingested books and collections.
type LibraryService struct {
	manifest driven.Manifest
	store    driven.VectorStore
}

// NewLibraryService creates a new library service.
func NewLibraryService(manifest driven.Manifest, store driven.VectorStore) *LibraryService {
	return &LibraryService{manifest: manifest, store: store}
}

// ListBooks returns manifest entries, most recent first.
func (s *LibraryService) ListBooks(ctx context.Context) ([]domain.ManifestEntry, error) {
	return s.manifest.List(ctx)
}

// ListCollections returns every vector store collection.
func (s *LibraryService) ListCollections(ctx context.Context) ([]domain.CollectionInfo, error) {
	return s.store.ListCollections(ctx)
}
