package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Manifest implements the interface.
var _ driven.Manifest = (*Manifest)(nil)

// Manifest is an in-memory implementation of driven.Manifest.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]domain.ManifestEntry
}

// NewManifest creates a new in-memory manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]domain.ManifestEntry),
	}
}

// AlreadyIngested reports whether the source has a recorded ingestion.
func (m *Manifest) AlreadyIngested(_ context.Context, sourceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[sourceID]
	return ok, nil
}

// RecordIngestion stores or replaces the entry for entry.SourceID.
func (m *Manifest) RecordIngestion(_ context.Context, entry domain.ManifestEntry) error {
	if entry.SourceID == "" {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.SourceID] = entry
	return nil
}

// List returns all entries, most recent first.
func (m *Manifest) List(_ context.Context) ([]domain.ManifestEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]domain.ManifestEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IngestedAt.Equal(entries[j].IngestedAt) {
			return entries[i].SourceID < entries[j].SourceID
		}
		return entries[i].IngestedAt.After(entries[j].IngestedAt)
	})
	return entries, nil
}

// Get returns the entry for a source.
func (m *Manifest) Get(_ context.Context, sourceID string) (*domain.ManifestEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}
