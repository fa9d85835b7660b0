// Package storage opens the vector store and manifest selected by settings.
package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Backends holds the opened persistence adapters.
type Backends struct {
	VectorStore driven.VectorStore
	Manifest    driven.Manifest
	closers     []io.Closer
}

// Close releases every opened backend.
func (b *Backends) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open creates the vector store and manifest for settings.
// The manifest lives in the local sqlite database unless the memory provider
// is selected. dataDir may be empty for the default location.
func Open(settings domain.VectorStoreSettings, dataDir string) (*Backends, error) {
	switch settings.Provider {
	case domain.VectorStoreMemory:
		return &Backends{
			VectorStore: memory.NewVectorStore(),
			Manifest:    memory.NewManifest(),
		}, nil

	case domain.VectorStoreSQLite, "":
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
		return &Backends{
			VectorStore: store.VectorStore(),
			Manifest:    store.Manifest(),
			closers:     []io.Closer{store},
		}, nil

	case domain.VectorStoreQdrant:
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
		vs := qdrant.NewVectorStore(qdrant.Config{
			URL:     settings.URL,
			APIKey:  settings.APIKey,
			Timeout: settings.Timeout,
		})
		return &Backends{
			VectorStore: vs,
			Manifest:    store.Manifest(),
			closers:     []io.Closer{vs, store},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vector store %q", domain.ErrConfiguration, settings.Provider)
	}
}
