package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// BookLoader reads a book file into an ingest request.
type BookLoader interface {
	LoadBook(ctx context.Context, path string, opts app.BookOptions) (domain.IngestRequest, error)
}

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers the retrieve tool.
	Retrieval driving.RetrievalService

	// Library lists ingested books and collections.
	Library driving.LibraryService

	// Ingestion and Loader together enable the ingest_book tool.
	Ingestion driving.IngestionService
	Loader    BookLoader

	// Defaults seed every retrieve call. Zero means domain.DefaultRetrievalParams.
	Defaults domain.RetrievalParams
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}

// canIngest reports whether the ingest tool can be served.
func (p *Ports) canIngest() bool {
	return p.Ingestion != nil && p.Loader != nil
}

func (p *Ports) defaults() domain.RetrievalParams {
	if p.Defaults.Collection == "" {
		return domain.DefaultRetrievalParams()
	}
	return p.Defaults
}
