// Package embedder attaches embeddings to chunks produced by the chunker.
package embedder

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultBatchSize is the default number of chunks per embedding request.
const DefaultBatchSize = 32

// DefaultConcurrency is the default number of embedding requests in flight.
const DefaultConcurrency = 2

// Processor embeds child and flat chunk texts.
// Parent chunks get the normalised centroid of their children's vectors, so
// chapter-sized text never has to fit the embedding model's context window.
type Processor struct {
	embedder    driven.EmbeddingService
	batchSize   int
	concurrency int
}

// Option configures the embedder processor.
type Option func(*Processor)

// WithBatchSize sets the number of chunks per embedding request.
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

// New creates a new embedder processor.
func New(embedder driven.EmbeddingService, opts ...Option) *Processor {
	p := &Processor{
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "embedder"
}

// Process returns chunks with Embedding set. The input slice is not modified.
func (p *Processor) Process(ctx context.Context, _ *domain.ChapterInput, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	if p.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)

	var targets []int
	for i := range out {
		if out[i].Level != domain.LevelParent {
			targets = append(targets, i)
		}
	}

	if err := p.embedTargets(ctx, out, targets); err != nil {
		return nil, err
	}

	attachParentCentroids(out)

	logger.Debug("embedded %d chunks with %s", len(targets), p.embedder.ModelName())
	return out, nil
}

func (p *Processor) embedTargets(ctx context.Context, chunks []domain.Chunk, targets []int) error {
	dims := p.embedder.Dimensions()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(targets); start += p.batchSize {
		batch := targets[start:min(start+p.batchSize, len(targets))]
		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = chunks[idx].Text
		}

		g.Go(func() error {
			vectors, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: embedding service returned %d vectors for %d chunks",
					domain.ErrConfiguration, len(vectors), len(batch))
			}
			for j, idx := range batch {
				if dims > 0 && len(vectors[j]) != dims {
					return domain.DimensionError("chunk "+chunks[idx].ID, dims, len(vectors[j]))
				}
				chunks[idx].Embedding = vectors[j]
			}
			return nil
		})
	}

	return g.Wait()
}

// attachParentCentroids sets each parent's vector to the unit-length mean of its children.
func attachParentCentroids(chunks []domain.Chunk) {
	sums := make(map[string][]float64)
	for _, c := range chunks {
		if c.Level != domain.LevelChild || len(c.Embedding) == 0 {
			continue
		}
		sum, ok := sums[c.ParentID]
		if !ok {
			sum = make([]float64, len(c.Embedding))
			sums[c.ParentID] = sum
		}
		for i, v := range c.Embedding {
			if i < len(sum) {
				sum[i] += float64(v)
			}
		}
	}

	for i := range chunks {
		if chunks[i].Level != domain.LevelParent {
			continue
		}
		sum, ok := sums[chunks[i].ID]
		if !ok {
			continue
		}
		chunks[i].Embedding = normalise(sum)
	}
}

func normalise(v []float64) []float32 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}
