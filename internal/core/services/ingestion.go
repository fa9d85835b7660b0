package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// Ingestion outcomes recorded in metrics.
const (
	outcomeCompleted = "completed"
	outcomePartial   = "partial"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// IngestionService chunks chapters through the post-processor pipeline and
// uploads the result.
type IngestionService struct {
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	store    driven.VectorStore
	manifest driven.Manifest
	uploader *Uploader
	metrics  *metrics.Metrics
	now      func() time.Time
}

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithIngestionMetrics records ingestion counters.
func WithIngestionMetrics(m *metrics.Metrics) IngestionOption {
	return func(s *IngestionService) {
		s.metrics = m
	}
}

// WithUploadBatchSize sets the number of points per upsert.
func WithUploadBatchSize(n int) IngestionOption {
	return func(s *IngestionService) {
		s.uploader.batchSize = n
		if n <= 0 {
			s.uploader.batchSize = DefaultUploadBatchSize
		}
	}
}

// WithIngestionClock overrides the clock used for manifest timestamps.
func WithIngestionClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) {
		s.now = now
	}
}

// NewIngestionService creates a new ingestion service.
// The pipeline must produce embedded chunks, normally chunker then embedder.
func NewIngestionService(
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	manifest driven.Manifest,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		pipeline: pipeline,
		embedder: embedder,
		store:    store,
		manifest: manifest,
		uploader: NewUploader(store, DefaultUploadBatchSize, nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.uploader.metrics = s.metrics
	return s
}

// Ingest chunks, embeds and uploads one book.
//
// Nothing is uploaded unless every chapter chunks successfully. The manifest
// records the source only when every chunk was persisted, so a partial upload
// can be retried with the same IngestionID.
func (s *IngestionService) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestionReport, error) {
	logger.Section("Ingestion")
	start := s.now()

	report := domain.IngestionReport{
		IngestionID: req.IngestionID,
		SourceID:    req.Book.SourceID,
		Title:       req.Book.Title,
		Collection:  req.Collection,
		Chapters:    len(req.Chapters),
		Failures:    []domain.ChunkFailure{},
	}

	if err := s.validate(req); err != nil {
		s.metrics.IncIngestion(outcomeFailed)
		return report, err
	}

	if !req.Force && req.Book.SourceID != "" {
		done, err := s.manifest.AlreadyIngested(ctx, req.Book.SourceID)
		if err != nil {
			s.metrics.IncIngestion(outcomeFailed)
			return report, fmt.Errorf("check manifest: %w", err)
		}
		if done {
			logger.Info("%q already ingested, skipping (use --force to re-ingest)", req.Book.Title)
			report.Skipped = true
			report.Duration = s.now().Sub(start)
			s.metrics.IncIngestion(outcomeSkipped)
			return report, nil
		}
	}

	if report.IngestionID == "" {
		report.IngestionID = domain.NewIngestionID()
	}
	logger.Debug("Ingestion id: %s", report.IngestionID)

	if err := s.store.EnsureCollection(ctx, req.Collection, s.embedder.Dimensions()); err != nil {
		s.metrics.IncIngestion(outcomeFailed)
		return report, err
	}

	chunks, err := s.chunkChapters(ctx, req, report.IngestionID)
	if err != nil {
		s.metrics.IncIngestion(outcomeFailed)
		return report, err
	}

	for _, c := range chunks {
		switch c.Level {
		case domain.LevelParent:
			report.ParentChunks++
		case domain.LevelChild:
			report.ChildChunks++
		case domain.LevelFlat:
			report.FlatChunks++
		}
	}
	report.ChunksBuilt = len(chunks)
	s.metrics.AddChunksBuilt(string(domain.LevelParent), report.ParentChunks)
	s.metrics.AddChunksBuilt(string(domain.LevelChild), report.ChildChunks)
	s.metrics.AddChunksBuilt(string(domain.LevelFlat), report.FlatChunks)
	logger.Debug("Built %d chunks (%d parent, %d child, %d flat)",
		report.ChunksBuilt, report.ParentChunks, report.ChildChunks, report.FlatChunks)

	upload, err := s.uploader.Upload(ctx, req.Collection, req.Book, chunks)
	report.ChunksCreated = len(upload.Succeeded)
	report.Failures = upload.Failed
	report.Duration = s.now().Sub(start)

	if err != nil {
		if errors.Is(err, domain.ErrPartialUpload) {
			logger.Warn("%q: %d of %d chunks failed to upload", req.Book.Title, len(upload.Failed), report.ChunksBuilt)
			s.metrics.IncIngestion(outcomePartial)
		} else {
			s.metrics.IncIngestion(outcomeFailed)
		}
		return report, err
	}

	if req.Book.SourceID != "" {
		entry := domain.ManifestEntry{
			SourceID:    req.Book.SourceID,
			Book:        req.Book,
			Collection:  req.Collection,
			IngestionID: report.IngestionID,
			ChunkCount:  report.ChunksCreated,
			IngestedAt:  s.now(),
		}
		if err := s.manifest.RecordIngestion(ctx, entry); err != nil {
			s.metrics.IncIngestion(outcomeFailed)
			return report, fmt.Errorf("record manifest: %w", err)
		}
	}

	s.metrics.IncIngestion(outcomeCompleted)
	logger.Info("Ingested %q: %d chunks into %q in %s",
		req.Book.Title, report.ChunksCreated, req.Collection, report.Duration.Round(time.Millisecond))
	return report, nil
}

func (s *IngestionService) validate(req domain.IngestRequest) error {
	if req.Collection == "" {
		return fmt.Errorf("%w: collection is required", domain.ErrConfiguration)
	}
	if err := req.Params.Validate(); err != nil {
		return err
	}
	if len(req.Chapters) == 0 {
		return fmt.Errorf("%w: book %q has no chapters", domain.ErrInvalidInput, req.Book.Title)
	}
	return nil
}

func (s *IngestionService) chunkChapters(
	ctx context.Context, req domain.IngestRequest, ingestionID string,
) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, chapter := range req.Chapters {
		input := &domain.ChapterInput{
			IngestionID: ingestionID,
			Book:        req.Book,
			Chapter:     chapter,
			Params:      req.Params,
		}
		chunks, err := s.pipeline.Process(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("chapter %d (%s): %w", chapter.Index, chapter.Title, err)
		}
		logger.Debug("Chapter %d %q: %d chunks", chapter.Index, chapter.Title, len(chunks))
		all = append(all, chunks...)
	}
	return all, nil
}
