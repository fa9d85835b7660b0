package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages with parent context", func(t *testing.T) {
		synthErr := "synthesis timed out"
		mockRetrieval := &mockRetrievalService{
			response: &domain.RetrievalResponse{
				Results: []domain.RetrievalResult{{
					Chunk: domain.Chunk{
						ID:           "c1",
						Level:        domain.LevelChild,
						Text:         "Cats purr.",
						ParentID:     "p1",
						SectionName:  "Chapter 1",
						ChapterIndex: 0,
						Book:         domain.BookMetadata{Title: "On Cats", Author: "A. Writer"},
					},
					Score:    0.91,
					Siblings: []domain.Chunk{{ID: "c2", Text: "Cats sleep."}},
				}},
				Parents: map[string]domain.ParentContext{
					"p1": {ID: "p1", Text: "Cats purr. Cats sleep."},
				},
				Accounting:     domain.Accounting{Fetched: 20, BelowThreshold: 19, Returned: 1},
				SynthesisError: &synthErr,
			},
		}
		server, err := NewServer(&Ports{Retrieval: mockRetrieval})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "cats"})

		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		passage := output.Passages[0]
		assert.Equal(t, "c1", passage.ChunkID)
		assert.Equal(t, "On Cats", passage.Book)
		assert.Equal(t, "A. Writer", passage.Author)
		assert.Equal(t, "Chapter 1", passage.Section)
		assert.Equal(t, "Cats purr. Cats sleep.", passage.Parent)
		assert.Equal(t, []string{"Cats sleep."}, passage.Siblings)
		assert.InDelta(t, 0.91, passage.Score, 1e-9)
		assert.Equal(t, 19, output.Accounting.BelowThreshold)
		assert.Equal(t, "synthesis timed out", output.SynthesisError)
	})

	t.Run("uses defaults when input is empty", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{}
		server, err := NewServer(&Ports{Retrieval: mockRetrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "q"})

		require.NoError(t, err)
		assert.Equal(t, domain.DefaultRetrievalParams(), mockRetrieval.lastParams)
	})

	t.Run("overlays input on configured defaults", func(t *testing.T) {
		defaults := domain.DefaultRetrievalParams()
		defaults.Collection = "library"
		defaults.Limit = 8
		mockRetrieval := &mockRetrievalService{}
		server, err := NewServer(&Ports{Retrieval: mockRetrieval, Defaults: defaults})
		require.NoError(t, err)

		zero := 0.0
		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{
			Query:      "q",
			Threshold:  &zero,
			Mode:       "comprehensive",
			Domain:     "philosophy",
			Book:       "On Cats",
			Rerank:     true,
			Synthesize: true,
			Pattern:    "summary",
		})

		require.NoError(t, err)
		params := mockRetrieval.lastParams
		assert.Equal(t, "library", params.Collection)
		assert.Equal(t, 8, params.Limit)
		assert.Zero(t, params.SimilarityThreshold)
		assert.Equal(t, domain.ContextComprehensive, params.ContextMode)
		assert.Equal(t, "philosophy", params.Filters.Domain)
		assert.Equal(t, "On Cats", params.Filters.BookTitle)
		assert.True(t, params.Rerank)
		assert.True(t, params.Synthesize)
		assert.Equal(t, "summary", params.ResponsePattern)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{err: domain.ErrUnknownCollection}
		server, err := NewServer(&Ports{Retrieval: mockRetrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "q"})

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	newServer := func(ingestion *mockIngestionService, loader *mockLoader) *Server {
		server, err := NewServer(&Ports{
			Retrieval: &mockRetrievalService{},
			Ingestion: ingestion,
			Loader:    loader,
		})
		require.NoError(t, err)
		return server
	}

	t.Run("loads and ingests the book", func(t *testing.T) {
		ingestion := &mockIngestionService{report: domain.IngestionReport{ChunksBuilt: 4, ChunksCreated: 4}}
		loader := &mockLoader{}
		server := newServer(ingestion, loader)

		result, report, err := server.handleIngest(ctx, nil, IngestInput{
			Path:  "/books/cats.md",
			Title: "On Cats",
			Force: true,
		})

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 4, report.ChunksCreated)
		assert.Equal(t, "/books/cats.md", loader.lastPath)
		assert.Equal(t, "On Cats", ingestion.lastReq.Book.Title)
		assert.True(t, ingestion.lastReq.Force)
	})

	t.Run("requires a path", func(t *testing.T) {
		server := newServer(&mockIngestionService{}, &mockLoader{})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{})

		assert.Error(t, err)
	})

	t.Run("load failure is returned", func(t *testing.T) {
		server := newServer(&mockIngestionService{}, &mockLoader{err: domain.ErrUnsupportedType})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Path: "book.epub"})

		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("partial upload reports the chunks that landed", func(t *testing.T) {
		partial := &domain.PartialUploadError{
			Succeeded: []string{"a"},
			Failed:    []domain.ChunkFailure{{ChunkID: "b", Reason: "boom"}},
			Cause:     domain.ErrConnectivity,
		}
		ingestion := &mockIngestionService{
			report: domain.IngestionReport{ChunksBuilt: 2, ChunksCreated: 1, Failures: partial.Failed},
			err:    partial,
		}
		server := newServer(ingestion, &mockLoader{})

		result, report, err := server.handleIngest(ctx, nil, IngestInput{Path: "book.md"})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		assert.Equal(t, 1, report.ChunksCreated)
		assert.Len(t, report.Failures, 1)
	})

	t.Run("other ingestion errors are returned", func(t *testing.T) {
		ingestion := &mockIngestionService{err: errors.New("embedding failed")}
		server := newServer(ingestion, &mockLoader{})

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Path: "book.md"})

		assert.EqualError(t, err, "embedding failed")
	})
}
