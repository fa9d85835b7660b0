package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// collection holds points in insertion order.
type collection struct {
	dimensions int
	order      []string
	points     map[string]driven.Point
}

// VectorStore is an in-memory implementation of driven.VectorStore.
// Search is a brute-force cosine scan.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		collections: make(map[string]*collection),
	}
}

// EnsureCollection creates the collection if missing.
func (s *VectorStore) EnsureCollection(_ context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: collection %q needs a positive dimension", domain.ErrConfiguration, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.dimensions != dimensions {
			return domain.DimensionError("collection "+name, c.dimensions, dimensions)
		}
		return nil
	}
	s.collections[name] = &collection{
		dimensions: dimensions,
		points:     make(map[string]driven.Point),
	}
	return nil
}

// CollectionInfo describes an existing collection.
func (s *VectorStore) CollectionInfo(_ context.Context, name string) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return domain.CollectionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
	}
	return domain.CollectionInfo{Name: name, Dimensions: c.dimensions, Points: len(c.points)}, nil
}

// ListCollections returns every collection sorted by name.
func (s *VectorStore) ListCollections(_ context.Context) ([]domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.CollectionInfo, 0, len(s.collections))
	for _, name := range slices.Sorted(maps.Keys(s.collections)) {
		c := s.collections[name]
		infos = append(infos, domain.CollectionInfo{Name: name, Dimensions: c.dimensions, Points: len(c.points)})
	}
	return infos, nil
}

// Upsert inserts or replaces points by id. A replaced point keeps its position.
func (s *VectorStore) Upsert(_ context.Context, name string, points []driven.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
	}

	// Validate the whole batch first so a bad point writes nothing.
	for _, p := range points {
		if len(p.Vector) != c.dimensions {
			return domain.DimensionError("point "+p.ID, c.dimensions, len(p.Vector))
		}
	}

	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = clonePoint(p)
	}
	return nil
}

// Search returns up to limit points matching filter, best score first.
func (s *VectorStore) Search(
	_ context.Context,
	name string,
	vector []float32,
	limit int,
	filter driven.PointFilter,
) ([]driven.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
	}
	if len(vector) != c.dimensions {
		return nil, domain.DimensionError("query vector", c.dimensions, len(vector))
	}
	if limit <= 0 {
		return nil, nil
	}

	hits := make([]driven.ScoredPoint, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		if !filter.Allows(p.Payload) {
			continue
		}
		hits = append(hits, driven.ScoredPoint{
			Point: clonePoint(p),
			Score: domain.CosineSimilarity(vector, p.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetByIDs returns the points that exist among ids, in request order.
func (s *VectorStore) GetByIDs(_ context.Context, name string, ids []string) ([]driven.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
	}

	points := make([]driven.Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.points[id]; ok {
			points = append(points, clonePoint(p))
		}
	}
	return points, nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

// clonePoint copies the vector and payload so callers cannot mutate stored state.
func clonePoint(p driven.Point) driven.Point {
	return driven.Point{
		ID:      p.ID,
		Vector:  slices.Clone(p.Vector),
		Payload: maps.Clone(p.Payload),
	}
}
