package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	response   *domain.RetrievalResponse
	err        error
	lastQuery  string
	lastParams domain.RetrievalParams
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	query string,
	params domain.RetrievalParams,
) (*domain.RetrievalResponse, error) {
	m.lastQuery = query
	m.lastParams = params
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.RetrievalResponse{Query: query}, nil
	}
	return m.response, nil
}

// mockLibraryService is a mock implementation of driving.LibraryService.
type mockLibraryService struct {
	books       []domain.ManifestEntry
	collections []domain.CollectionInfo
	err         error
}

func (m *mockLibraryService) ListBooks(_ context.Context) ([]domain.ManifestEntry, error) {
	return m.books, m.err
}

func (m *mockLibraryService) ListCollections(_ context.Context) ([]domain.CollectionInfo, error) {
	return m.collections, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	report  domain.IngestionReport
	err     error
	lastReq domain.IngestRequest
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (domain.IngestionReport, error) {
	m.lastReq = req
	return m.report, m.err
}

// mockLoader is a mock BookLoader.
type mockLoader struct {
	err      error
	lastPath string
	lastOpts app.BookOptions
}

func (m *mockLoader) LoadBook(_ context.Context, path string, opts app.BookOptions) (domain.IngestRequest, error) {
	m.lastPath = path
	m.lastOpts = opts
	if m.err != nil {
		return domain.IngestRequest{}, m.err
	}
	return domain.IngestRequest{
		Collection: opts.Collection,
		Book:       domain.BookMetadata{Title: opts.Title},
		Force:      opts.Force,
	}, nil
}
