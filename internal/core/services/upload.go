package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

// DefaultUploadBatchSize is the number of points per upsert when unset.
const DefaultUploadBatchSize = 64

// Uploader persists embedded chunks to a vector store in batches.
type Uploader struct {
	store     driven.VectorStore
	batchSize int
	metrics   *metrics.Metrics
}

// NewUploader creates an uploader. A non-positive batch size uses the default.
func NewUploader(store driven.VectorStore, batchSize int, m *metrics.Metrics) *Uploader {
	if batchSize <= 0 {
		batchSize = DefaultUploadBatchSize
	}
	return &Uploader{store: store, batchSize: batchSize, metrics: m}
}

// Upload stamps book metadata on every chunk and upserts them.
//
// Every chunk ends up in exactly one of report.Succeeded or report.Failed.
// Collection, dimension and payload problems are detected before anything is
// written; they fail every chunk and return the underlying error unchanged.
// A connectivity failure during writing aborts the remaining batches. Any
// failure once writing has started returns *domain.PartialUploadError.
func (u *Uploader) Upload(
	ctx context.Context, collection string, book domain.BookMetadata, chunks []domain.Chunk,
) (domain.UploadReport, error) {
	report := domain.UploadReport{Succeeded: []string{}, Failed: []domain.ChunkFailure{}}
	if len(chunks) == 0 {
		return report, nil
	}

	info, err := u.store.CollectionInfo(ctx, collection)
	if err != nil {
		return u.failAll(report, chunks, err)
	}

	points := make([]driven.Point, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		c.Book = book
		if len(c.Embedding) != info.Dimensions {
			return u.failAll(report, chunks, domain.DimensionError("chunk "+c.ID, info.Dimensions, len(c.Embedding)))
		}
		payload, err := c.Payload()
		if err != nil {
			return u.failAll(report, chunks, err)
		}
		points = append(points, driven.Point{ID: c.ID, Vector: c.Embedding, Payload: payload})
	}

	var cause error
	aborted := false
	for start := 0; start < len(points); start += u.batchSize {
		batch := points[start:min(start+u.batchSize, len(points))]

		if aborted {
			report.Failed = append(report.Failed, failuresFor(batch, domain.FailureReasonAborted)...)
			continue
		}
		if err := ctx.Err(); err != nil {
			cause = err
			aborted = true
			report.Failed = append(report.Failed, failuresFor(batch, err.Error())...)
			continue
		}

		if err := u.store.Upsert(ctx, collection, batch); err != nil {
			logger.Warn("Upload batch of %d points to %q failed: %v", len(batch), collection, err)
			if cause == nil {
				cause = err
			}
			report.Failed = append(report.Failed, failuresFor(batch, err.Error())...)
			if errors.Is(err, domain.ErrConnectivity) {
				aborted = true
			}
			continue
		}

		for _, p := range batch {
			report.Succeeded = append(report.Succeeded, p.ID)
		}
		logger.Debug("Uploaded %d points to %q", len(batch), collection)
	}

	if len(report.Failed) == 0 {
		return report, nil
	}

	u.metrics.AddUploadFailures(len(report.Failed))
	return report, &domain.PartialUploadError{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Cause:     fmt.Errorf("upload to %q: %w", collection, cause),
	}
}

// failAll reports every chunk as failed with err as the reason.
func (u *Uploader) failAll(report domain.UploadReport, chunks []domain.Chunk, err error) (domain.UploadReport, error) {
	logger.Warn("Upload of %d chunks aborted before writing: %v", len(chunks), err)
	for i := range chunks {
		report.Failed = append(report.Failed, domain.ChunkFailure{ChunkID: chunks[i].ID, Reason: err.Error()})
	}
	u.metrics.AddUploadFailures(len(report.Failed))
	return report, err
}

func failuresFor(batch []driven.Point, reason string) []domain.ChunkFailure {
	out := make([]domain.ChunkFailure, len(batch))
	for i, p := range batch {
		out[i] = domain.ChunkFailure{ChunkID: p.ID, Reason: reason}
	}
	return out
}
