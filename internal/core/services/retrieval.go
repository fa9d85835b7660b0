package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Default LLM stage timeouts.
const (
	DefaultRerankTimeout    = 20 * time.Second
	DefaultSynthesisTimeout = 60 * time.Second
)

// searchLevels are the chunk levels a query may match.
var searchLevels = []domain.ChunkLevel{domain.LevelChild, domain.LevelFlat}

// RetrievalService embeds a query, searches a collection and expands context.
type RetrievalService struct {
	embedder         driven.EmbeddingService
	store            driven.VectorStore
	reranker         driven.Reranker
	synthesizer      driven.Synthesizer
	rerankTimeout    time.Duration
	synthesisTimeout time.Duration
	metrics          *metrics.Metrics
	now              func() time.Time
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithReranker sets the reranker. Nil keeps the no-op reranker.
func WithReranker(r driven.Reranker) RetrievalOption {
	return func(s *RetrievalService) {
		if r != nil {
			s.reranker = r
		}
	}
}

// WithSynthesizer sets the synthesizer. Nil keeps the no-op synthesizer.
func WithSynthesizer(syn driven.Synthesizer) RetrievalOption {
	return func(s *RetrievalService) {
		if syn != nil {
			s.synthesizer = syn
		}
	}
}

// WithStageTimeouts bounds rerank and synthesis. Zero keeps the defaults.
func WithStageTimeouts(rerank, synthesis time.Duration) RetrievalOption {
	return func(s *RetrievalService) {
		if rerank > 0 {
			s.rerankTimeout = rerank
		}
		if synthesis > 0 {
			s.synthesisTimeout = synthesis
		}
	}
}

// WithRetrievalMetrics records retrieval accounting.
func WithRetrievalMetrics(m *metrics.Metrics) RetrievalOption {
	return func(s *RetrievalService) {
		s.metrics = m
	}
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	embedder driven.EmbeddingService, store driven.VectorStore, opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		embedder:         embedder,
		store:            store,
		reranker:         NoopReranker{},
		synthesizer:      NoopSynthesizer{},
		rerankTimeout:    DefaultRerankTimeout,
		synthesisTimeout: DefaultSynthesisTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// candidate is a decoded search hit with its store position.
type candidate struct {
	chunk domain.Chunk
	score float64
}

// Retrieve runs one query.
//
// Configuration, connectivity and embedding failures fail the call. Rerank
// and synthesis failures are recorded on the response.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, params domain.RetrievalParams,
) (*domain.RetrievalResponse, error) {
	logger.Section("Retrieval")
	start := s.now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Query: %q collection=%s mode=%s limit=%d threshold=%.2f",
		query, params.Collection, params.ContextMode, params.Limit, params.SimilarityThreshold)

	info, err := s.store.CollectionInfo(ctx, params.Collection)
	if err != nil {
		return nil, err
	}
	if dims := s.embedder.Dimensions(); dims > 0 && dims != info.Dimensions {
		return nil, domain.DimensionError("embedding model "+s.embedder.ModelName(), info.Dimensions, dims)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != info.Dimensions {
		return nil, domain.DimensionError("query embedding", info.Dimensions, len(vector))
	}

	hits, err := s.store.Search(ctx, params.Collection, vector, params.FetchCount(),
		driven.PointFilter{Levels: searchLevels})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", params.Collection, err)
	}

	resp := &domain.RetrievalResponse{
		Query:       query,
		Collection:  params.Collection,
		ContextMode: params.ContextMode,
		Results:     []domain.RetrievalResult{},
	}
	resp.Results, resp.Accounting = selectResults(hits, params)
	logger.Debug("Fetched %d, below threshold %d, filtered %d, truncated %d, returned %d",
		resp.Accounting.Fetched, resp.Accounting.BelowThreshold, resp.Accounting.FilteredOut,
		resp.Accounting.Truncated, resp.Accounting.Returned)

	if err := s.expandContext(ctx, params, resp); err != nil {
		return nil, err
	}

	if len(resp.Results) > 0 {
		if params.Rerank {
			s.rerank(ctx, resp)
		}
		if params.Synthesize {
			s.synthesize(ctx, params.ResponsePattern, resp)
		}
	}

	a := resp.Accounting
	s.metrics.ObserveRetrieval(string(params.ContextMode),
		a.BelowThreshold, a.FilteredOut, a.Truncated, a.Returned, s.now().Sub(start))
	return resp, nil
}

// selectResults applies threshold, filters and limit in that order.
// Every hit is counted in exactly one accounting bucket.
func selectResults(
	hits []driven.ScoredPoint, params domain.RetrievalParams,
) ([]domain.RetrievalResult, domain.Accounting) {
	acc := domain.Accounting{Fetched: len(hits)}

	kept := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < params.SimilarityThreshold {
			acc.BelowThreshold++
			continue
		}
		chunk, err := domain.ChunkFromPayload(hit.ID, hit.Payload)
		if err != nil {
			logger.Warn("Skipping undecodable point %s: %v", hit.ID, err)
			acc.FilteredOut++
			continue
		}
		if !chunk.Level.IsSearchable() || !params.Filters.Matches(chunk.Book) {
			acc.FilteredOut++
			continue
		}
		kept = append(kept, candidate{chunk: chunk, score: hit.Score})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})

	if len(kept) > params.Limit {
		acc.Truncated = len(kept) - params.Limit
		kept = kept[:params.Limit]
	}
	acc.Returned = len(kept)

	results := make([]domain.RetrievalResult, len(kept))
	for i, c := range kept {
		results[i] = domain.RetrievalResult{Chunk: c.chunk, Score: c.score}
	}
	return results, acc
}

// expandContext attaches parents once per response and, in comprehensive
// mode, neighbouring siblings to each child result.
func (s *RetrievalService) expandContext(
	ctx context.Context, params domain.RetrievalParams, resp *domain.RetrievalResponse,
) error {
	if !params.ContextMode.AttachesParent() || len(resp.Results) == 0 {
		return nil
	}

	var parentIDs []string
	seen := make(map[string]bool)
	for _, r := range resp.Results {
		pid := r.Chunk.ParentID
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true
		parentIDs = append(parentIDs, pid)
	}
	if len(parentIDs) == 0 {
		return nil
	}

	parents, err := s.fetchChunks(ctx, params.Collection, parentIDs)
	if err != nil {
		return fmt.Errorf("fetch parents: %w", err)
	}
	resp.Parents = make(map[string]domain.ParentContext, len(parents))
	for id, p := range parents {
		resp.Parents[id] = domain.NewParentContext(p)
	}
	if missing := len(parentIDs) - len(parents); missing > 0 {
		logger.Warn("%d parent chunks missing from %q", missing, params.Collection)
	}

	if !params.ContextMode.AttachesSiblings() {
		return nil
	}
	return s.attachSiblings(ctx, params, resp, parents)
}

func (s *RetrievalService) attachSiblings(
	ctx context.Context, params domain.RetrievalParams, resp *domain.RetrievalResponse,
	parents map[string]domain.Chunk,
) error {
	wanted := make([][]string, len(resp.Results))
	var all []string
	for i, r := range resp.Results {
		parent, ok := parents[r.Chunk.ParentID]
		if r.Chunk.Level != domain.LevelChild || !ok {
			continue
		}
		wanted[i] = siblingIDs(parent, r.Chunk.SequenceIndex, params.SiblingWindow)
		all = append(all, wanted[i]...)
	}
	if len(all) == 0 {
		return nil
	}

	siblings, err := s.fetchChunks(ctx, params.Collection, all)
	if err != nil {
		return fmt.Errorf("fetch siblings: %w", err)
	}
	for i, ids := range wanted {
		for _, id := range ids {
			if sib, ok := siblings[id]; ok {
				resp.Results[i].Siblings = append(resp.Results[i].Siblings, sib)
			}
		}
	}
	return nil
}

// siblingIDs returns neighbour ids in sequence order, excluding seq itself
// and clamped to the parent's children.
func siblingIDs(parent domain.Chunk, seq, window int) []string {
	lo := max(seq-window, 0)
	hi := min(seq+window, parent.ChildCount-1)
	ids := make([]string, 0, 2*window)
	for i := lo; i <= hi; i++ {
		if i != seq {
			ids = append(ids, domain.ChildChunkID(parent.ID, i))
		}
	}
	return ids
}

// fetchChunks loads and decodes points by id, deduplicating the request.
func (s *RetrievalService) fetchChunks(ctx context.Context, collection string, ids []string) (map[string]domain.Chunk, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	points, err := s.store.GetByIDs(ctx, collection, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Chunk, len(points))
	for _, p := range points {
		c, err := domain.ChunkFromPayload(p.ID, p.Payload)
		if err != nil {
			logger.Warn("Skipping undecodable point %s: %v", p.ID, err)
			continue
		}
		out[p.ID] = c
	}
	return out, nil
}

func (s *RetrievalService) rerank(ctx context.Context, resp *domain.RetrievalResponse) {
	rctx, cancel := context.WithTimeout(ctx, s.rerankTimeout)
	defer cancel()

	reordered, err := s.reranker.Rerank(rctx, resp.Query, resp.Results)
	if err == nil {
		err = checkPermutation(resp.Results, reordered)
	}
	if err != nil {
		logger.Warn("Rerank failed, keeping similarity order: %v", err)
		resp.DegradedRerank = true
		resp.RerankError = err.Error()
		s.metrics.IncDegradedRerank()
		return
	}

	resp.Results = reordered
	resp.Reranked = s.reranker.Enabled()
}

// checkPermutation verifies a reranker returned exactly the input results.
func checkPermutation(in, out []domain.RetrievalResult) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: reranker returned %d results for %d", domain.ErrDegradedFeature, len(out), len(in))
	}
	counts := make(map[string]int, len(in))
	for _, r := range in {
		counts[r.Chunk.ID]++
	}
	for _, r := range out {
		counts[r.Chunk.ID]--
		if counts[r.Chunk.ID] < 0 {
			return fmt.Errorf("%w: reranker returned unexpected result %s", domain.ErrDegradedFeature, r.Chunk.ID)
		}
	}
	return nil
}

func (s *RetrievalService) synthesize(ctx context.Context, pattern string, resp *domain.RetrievalResponse) {
	sctx, cancel := context.WithTimeout(ctx, s.synthesisTimeout)
	defer cancel()

	answer, err := s.synthesizer.Synthesize(sctx, resp.Query, resp.Results, pattern)
	if err != nil {
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("synthesis timed out after %s: %w", s.synthesisTimeout, err)
		}
		logger.Warn("Synthesis failed: %v", err)
		msg := err.Error()
		resp.SynthesisError = &msg
		s.metrics.IncSynthesisFailure()
		return
	}
	resp.Synthesis = answer
}
