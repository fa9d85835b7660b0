package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const testBook = `---
title: On Cats
author: A. Writer
domain: philosophy
---

# Chapter 1

Cats purr when content.

# Chapter 2

Cats sleep most of the day.
`

func writeTestBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cats.md")
	require.NoError(t, os.WriteFile(path, []byte(testBook), 0600))
	return path
}

func TestIngestCmd_RequiresArgs(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ingest")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_HasFlags(t *testing.T) {
	for _, name := range []string{"collection", "title", "author", "language", "domain", "flat", "force", "retries", "json"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), name)
	}
}

func TestIngestCmd_IngestsBook(t *testing.T) {
	ts := setupTestServices(t)
	path := writeTestBook(t)

	out, err := execute(t, "ingest", path)

	require.NoError(t, err)
	calls := ts.ingestion.calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, "On Cats", req.Book.Title)
	assert.Equal(t, "philosophy", req.Book.Domain)
	assert.Equal(t, domain.DefaultCollection, req.Collection)
	assert.Len(t, req.Chapters, 2)
	assert.True(t, req.Params.Hierarchical)
	assert.NotEmpty(t, req.IngestionID)
	assert.Contains(t, out, "On Cats")
}

func TestIngestCmd_AppliesFlags(t *testing.T) {
	ts := setupTestServices(t)
	path := writeTestBook(t)

	_, err := execute(t, "ingest", "--collection", "library", "--title", "Cats Again",
		"--domain", "law", "--flat", "--force", path)

	require.NoError(t, err)
	req := ts.ingestion.calls()[0]
	assert.Equal(t, "library", req.Collection)
	assert.Equal(t, "Cats Again", req.Book.Title)
	assert.Equal(t, "law", req.Book.Domain)
	assert.False(t, req.Params.Hierarchical)
	assert.True(t, req.Force)
}

func TestIngestCmd_JSON(t *testing.T) {
	setupTestServices(t)
	path := writeTestBook(t)

	out, err := execute(t, "ingest", "--json", path)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "["))
	assert.Contains(t, out, `"book_title": "On Cats"`)
}

func TestIngestCmd_SkippedBook(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingestion.reports = []domain.IngestionReport{{Skipped: true, Title: "On Cats"}}
	path := writeTestBook(t)

	out, err := execute(t, "ingest", path)

	require.NoError(t, err)
	assert.Contains(t, out, "already ingested")
}

func TestIngestCmd_UnsupportedFile(t *testing.T) {
	ts := setupTestServices(t)
	path := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := execute(t, "ingest", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest failed for 1 of 1 books")
	assert.Empty(t, ts.ingestion.calls())
}

func TestIngestCmd_RetriesConnectivityWithSameID(t *testing.T) {
	ts := setupTestServices(t)
	connErr := errors.Join(domain.ErrConnectivity, errors.New("connection refused"))
	ts.ingestion.errs = []error{connErr, connErr}
	path := writeTestBook(t)

	_, err := execute(t, "ingest", "--retries", "3", path)

	require.NoError(t, err)
	calls := ts.ingestion.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, calls[0].IngestionID, calls[1].IngestionID)
	assert.Equal(t, calls[0].IngestionID, calls[2].IngestionID)
}

func TestIngestCmd_RetriesExhausted(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingestion.errs = []error{domain.ErrConnectivity, domain.ErrConnectivity, domain.ErrConnectivity}
	path := writeTestBook(t)

	_, err := execute(t, "ingest", "--retries", "1", path)

	require.Error(t, err)
	assert.Len(t, ts.ingestion.calls(), 2)
}

func TestIngestCmd_ConfigurationErrorNotRetried(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingestion.errs = []error{domain.DimensionError("chunk", 768, 3)}
	path := writeTestBook(t)

	_, err := execute(t, "ingest", "--retries", "5", path)

	require.Error(t, err)
	assert.Len(t, ts.ingestion.calls(), 1)
}

func TestIngestCmd_PartialUploadReported(t *testing.T) {
	ts := setupTestServices(t)
	failures := []domain.ChunkFailure{{ChunkID: "chunk-9", Reason: "timeout"}}
	ts.ingestion.reports = []domain.IngestionReport{{
		Title: "On Cats", ChunksBuilt: 3, ChunksCreated: 2, Failures: failures,
	}}
	ts.ingestion.errs = []error{&domain.PartialUploadError{Succeeded: []string{"a", "b"}, Failed: failures}}
	path := writeTestBook(t)

	out, err := execute(t, "ingest", path)

	require.Error(t, err)
	assert.Contains(t, out, "1 chunks failed to upload")
	assert.Contains(t, out, "chunk-9")
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(domain.ErrConnectivity))
	assert.True(t, retryable(&domain.PartialUploadError{}))
	assert.False(t, retryable(domain.ErrUnknownCollection))
	assert.False(t, retryable(domain.ErrInvalidInput))
	assert.False(t, retryable(errors.New("boom")))
}

func TestIngestCmd_Directory(t *testing.T) {
	ts := setupTestServices(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte(testBook), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "more"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "more", "b.md"), []byte(testBook), 0600))

	_, err := execute(t, "ingest", dir)
	require.NoError(t, err)
	assert.Len(t, ts.ingestion.calls(), 1)

	_, err = execute(t, "ingest", "--recursive", dir)
	require.NoError(t, err)
	assert.Len(t, ts.ingestion.calls(), 3)
}

func TestIngestCmd_EmptyDirectory(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ingest", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no books to ingest")
}
