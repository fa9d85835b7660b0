package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Manifest records completed ingestions so a source is not ingested twice.
// Two concurrent ingestions of the same source may both pass AlreadyIngested;
// the manifest does not serialise them.
type Manifest interface {
	// AlreadyIngested reports whether the source has a recorded ingestion.
	AlreadyIngested(ctx context.Context, sourceID string) (bool, error)

	// RecordIngestion stores or replaces the entry for entry.SourceID.
	RecordIngestion(ctx context.Context, entry domain.ManifestEntry) error

	// List returns all entries, most recent first.
	List(ctx context.Context) ([]domain.ManifestEntry, error)

	// Get returns the entry for a source or domain.ErrNotFound.
	Get(ctx context.Context, sourceID string) (*domain.ManifestEntry, error)
}
