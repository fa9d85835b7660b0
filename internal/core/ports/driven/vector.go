package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// VectorStore persists chunk points and answers cosine similarity queries.
// The distance metric is always cosine and a collection's dimension is fixed
// when it is created. Implementations own write consistency under concurrent
// idempotent upserts.
type VectorStore interface {
	// EnsureCollection creates the collection if missing.
	// An existing collection with a different dimension is a configuration error.
	EnsureCollection(ctx context.Context, collection string, dimensions int) error

	// CollectionInfo describes an existing collection.
	// Returns domain.ErrUnknownCollection if it does not exist.
	CollectionInfo(ctx context.Context, collection string) (domain.CollectionInfo, error)

	// ListCollections returns every collection.
	ListCollections(ctx context.Context) ([]domain.CollectionInfo, error)

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to limit points matching filter, best score first.
	// Equal scores keep the store's own order.
	Search(ctx context.Context, collection string, vector []float32, limit int, filter PointFilter) ([]ScoredPoint, error)

	// GetByIDs returns the points that exist among ids. Missing ids are skipped.
	GetByIDs(ctx context.Context, collection string, ids []string) ([]Point, error)

	// Close releases resources.
	Close() error
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point

	// Score is the cosine similarity to the query vector.
	Score float64
}

// PointFilter restricts which points a search may return.
type PointFilter struct {
	// Levels restricts matches to these chunk levels. Empty means any level.
	Levels []domain.ChunkLevel
}

// Allows reports whether a payload passes the filter.
func (f PointFilter) Allows(payload map[string]any) bool {
	if len(f.Levels) == 0 {
		return true
	}
	level, _ := payload[domain.PayloadLevel].(string)
	for _, l := range f.Levels {
		if string(l) == level {
			return true
		}
	}
	return false
}
