// Package chunker provides semantic chunking: sentence segmentation, embedding
// based boundary detection and parent/child hierarchy construction.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultBatchSize is the default number of sentences per embedding request.
const DefaultBatchSize = 32

// DefaultConcurrency is the default number of embedding requests in flight.
const DefaultConcurrency = 2

// Processor builds chunks for one chapter.
// In hierarchical mode it emits one parent chunk followed by its children in
// sequence order; otherwise it emits flat chunks.
type Processor struct {
	embedder    driven.EmbeddingService
	batchSize   int
	concurrency int
	now         func() time.Time
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithBatchSize sets the number of sentences per embedding request.
func WithBatchSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithConcurrency sets the number of embedding requests in flight.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new chunker processor with the given options.
func New(embedder driven.EmbeddingService, opts ...Option) *Processor {
	p := &Processor{
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process segments the chapter, embeds its sentences, detects boundaries and
// emits chunks. Input chunks are ignored. An empty chapter yields no chunks.
func (p *Processor) Process(ctx context.Context, input *domain.ChapterInput, _ []domain.Chunk) ([]domain.Chunk, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: chapter input is nil", domain.ErrInvalidInput)
	}
	if p.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	detector, err := NewBoundaryDetector(ConfigFromParams(input.Params))
	if err != nil {
		return nil, err
	}

	text := input.Chapter.Text
	sentences := SegmentWithOffsets(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	embeddings, err := p.embedSentences(ctx, sentences)
	if err != nil {
		return nil, err
	}

	spans, err := detector.Detect(sentences, embeddings)
	if err != nil {
		return nil, err
	}

	logger.Debug("chapter %d %q: %d sentences, %d spans",
		input.Chapter.Index, input.Chapter.Title, len(sentences), len(spans))

	createdAt := p.now().UTC()
	if input.Params.Hierarchical {
		return p.buildHierarchy(input, text, sentences, spans, createdAt), nil
	}
	return p.buildFlat(input, text, spans, createdAt), nil
}

func (p *Processor) buildHierarchy(
	input *domain.ChapterInput,
	text string,
	sentences []Sentence,
	spans []Span,
	createdAt time.Time,
) []domain.Chunk {
	parentID := domain.ParentChunkID(input.IngestionID, input.Chapter.Index)
	start, end := sentences[0].Start, sentences[len(sentences)-1].End
	parentText, truncated := boundedExcerpt(text[start:end], input.Params.ParentMaxWords)

	chunks := make([]domain.Chunk, 0, len(spans)+1)
	chunks = append(chunks, domain.Chunk{
		ID:           parentID,
		Level:        domain.LevelParent,
		Text:         parentText,
		WordCount:    domain.CountWords(parentText),
		Book:         input.Book,
		SectionName:  input.Chapter.Title,
		ChapterIndex: input.Chapter.Index,
		ChildCount:   len(spans),
		Truncated:    truncated,
		StartOffset:  start,
		EndOffset:    start + len(parentText),
		IngestionID:  input.IngestionID,
		CreatedAt:    createdAt,
	})

	for i, span := range spans {
		chunks = append(chunks, domain.Chunk{
			ID:            domain.ChildChunkID(parentID, i),
			Level:         domain.LevelChild,
			Text:          text[span.StartOffset:span.EndOffset],
			WordCount:     span.WordCount,
			Book:          input.Book,
			SectionName:   input.Chapter.Title,
			ChapterIndex:  input.Chapter.Index,
			ParentID:      parentID,
			SequenceIndex: i,
			StartOffset:   span.StartOffset,
			EndOffset:     span.EndOffset,
			IngestionID:   input.IngestionID,
			CreatedAt:     createdAt,
		})
	}

	return chunks
}

func (p *Processor) buildFlat(input *domain.ChapterInput, text string, spans []Span, createdAt time.Time) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, domain.Chunk{
			ID:            domain.FlatChunkID(input.IngestionID, input.Chapter.Index, i),
			Level:         domain.LevelFlat,
			Text:          text[span.StartOffset:span.EndOffset],
			WordCount:     span.WordCount,
			Book:          input.Book,
			SectionName:   input.Chapter.Title,
			ChapterIndex:  input.Chapter.Index,
			SequenceIndex: i,
			StartOffset:   span.StartOffset,
			EndOffset:     span.EndOffset,
			IngestionID:   input.IngestionID,
			CreatedAt:     createdAt,
		})
	}
	return chunks
}

// embedSentences embeds sentences in batches with bounded concurrency.
// Results keep sentence order.
func (p *Processor) embedSentences(ctx context.Context, sentences []Sentence) ([][]float32, error) {
	embeddings := make([][]float32, len(sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(sentences); start += p.batchSize {
		end := min(start+p.batchSize, len(sentences))
		texts := make([]string, 0, end-start)
		for _, s := range sentences[start:end] {
			texts = append(texts, s.Text)
		}

		g.Go(func() error {
			vectors, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed sentences %d-%d: %w", start, end-1, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("%w: embedding service returned %d vectors for %d sentences",
					domain.ErrConfiguration, len(vectors), len(texts))
			}
			copy(embeddings[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// boundedExcerpt returns text cut after maxWords words. Zero means unbounded.
func boundedExcerpt(text string, maxWords int) (string, bool) {
	if maxWords <= 0 {
		return text, false
	}

	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord && words == maxWords {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace), true
			}
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
		}
	}
	return text, false
}
