package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// --- Mock implementations ---

// topicEmbedder maps text onto three axes by keyword: cats, stocks, anything else.
type topicEmbedder struct {
	dims  int
	err   error
	mu    sync.Mutex
	calls int
}

func topicVector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "cat"):
		return []float32{1, 0.1, 0}
	case strings.Contains(lower, "stock"):
		return []float32{0, 1, 0.1}
	default:
		return []float32{0.1, 0, 1}
	}
}

func (e *topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	v := topicVector(text)
	if e.dims > len(v) {
		v = append(v, make([]float32, e.dims-len(v))...)
	}
	return v, nil
}

func (e *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *topicEmbedder) Dimensions() int {
	if e.dims > 0 {
		return e.dims
	}
	return 3
}

func (e *topicEmbedder) ModelName() string            { return "topic" }
func (e *topicEmbedder) Ping(_ context.Context) error { return nil }
func (e *topicEmbedder) Close() error                 { return nil }

// mockLLMService returns a canned response and records prompts.
type mockLLMService struct {
	response string
	err      error
	delay    time.Duration
	mu       sync.Mutex
	prompts  []string
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) ModelName() string            { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

func (m *mockLLMService) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// mockPromptStore serves fixed templates.
type mockPromptStore struct {
	prompts map[string]string
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{prompts: map[string]string{
		driven.PromptRerank:                    "Q: %s\n%s\nRank.",
		driven.PromptSynthesize:                "Q: %s\n%s\nFormat: %s",
		driven.PromptPatternPrefix + "default": "plain answer",
		driven.PromptPatternPrefix + "summary": "bullet summary",
	}}
}

func (s *mockPromptStore) Load(name string) (string, error) {
	if p, ok := s.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (s *mockPromptStore) Reload() {}

// flakyStore fails Upsert from the given call onwards and CollectionInfo
// whenever infoErr is set.
type flakyStore struct {
	driven.VectorStore
	failFrom int
	err      error
	infoErr  error
	calls    int
}

func (s *flakyStore) CollectionInfo(ctx context.Context, collection string) (domain.CollectionInfo, error) {
	if s.infoErr != nil {
		return domain.CollectionInfo{}, s.infoErr
	}
	return s.VectorStore.CollectionInfo(ctx, collection)
}

func (s *flakyStore) Upsert(ctx context.Context, collection string, points []driven.Point) error {
	s.calls++
	if s.failFrom > 0 && s.calls >= s.failFrom {
		return s.err
	}
	return s.VectorStore.Upsert(ctx, collection, points)
}

// mockReranker returns a fixed order or error.
type mockReranker struct {
	reverse bool
	drop    bool
	err     error
	delay   time.Duration
}

func (r *mockReranker) Rerank(
	ctx context.Context, _ string, results []domain.RetrievalResult,
) ([]domain.RetrievalResult, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	out := append([]domain.RetrievalResult(nil), results...)
	if r.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if r.drop && len(out) > 0 {
		out = out[1:]
	}
	return out, nil
}

func (r *mockReranker) Enabled() bool { return true }

// fakePipeline returns prepared chunks per chapter index.
type fakePipeline struct {
	chunks map[int][]domain.Chunk
	err    error
	inputs []*domain.ChapterInput
}

func (p *fakePipeline) Process(_ context.Context, input *domain.ChapterInput) ([]domain.Chunk, error) {
	p.inputs = append(p.inputs, input)
	if p.err != nil {
		return nil, p.err
	}
	return p.chunks[input.Chapter.Index], nil
}

// --- Test helpers ---

var (
	catBook   = domain.BookMetadata{SourceID: "src-cats", Title: "On Cats", Language: "en", Domain: "philosophy"}
	stockBook = domain.BookMetadata{SourceID: "src-stocks", Title: "Markets", Language: "de", Domain: "finance"}
)

// hierarchy builds one parent with children whose vectors follow their text.
func hierarchy(ingestionID string, chapter int, book domain.BookMetadata, texts ...string) []domain.Chunk {
	parentID := domain.ParentChunkID(ingestionID, chapter)
	parent := domain.Chunk{
		ID:           parentID,
		Level:        domain.LevelParent,
		Text:         strings.Join(texts, " "),
		Book:         book,
		SectionName:  "Chapter",
		ChapterIndex: chapter,
		ChildCount:   len(texts),
		IngestionID:  ingestionID,
		Embedding:    []float32{0.3, 0.3, 0.3},
	}
	chunks := []domain.Chunk{parent}
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:            domain.ChildChunkID(parentID, i),
			Level:         domain.LevelChild,
			Text:          text,
			WordCount:     domain.CountWords(text),
			Book:          book,
			SectionName:   "Chapter",
			ChapterIndex:  chapter,
			ParentID:      parentID,
			SequenceIndex: i,
			IngestionID:   ingestionID,
			Embedding:     topicVector(text),
		})
	}
	return chunks
}

// seedStore uploads each chunk set, in order, into a fresh memory collection.
// Each set is stamped with the book of its first chunk.
func seedStore(t *testing.T, collection string, sets ...[]domain.Chunk) *memory.VectorStore {
	t.Helper()
	store := memory.NewVectorStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, collection, 3))
	uploader := NewUploader(store, 2, nil)
	for _, chunks := range sets {
		_, err := uploader.Upload(ctx, collection, chunks[0].Book, chunks)
		require.NoError(t, err)
	}
	return store
}

// countingStore records search limits and id lookups.
type countingStore struct {
	driven.VectorStore
	searchLimits []int
	lookups      int
}

func (s *countingStore) Search(
	ctx context.Context, collection string, vector []float32, limit int, filter driven.PointFilter,
) ([]driven.ScoredPoint, error) {
	s.searchLimits = append(s.searchLimits, limit)
	return s.VectorStore.Search(ctx, collection, vector, limit, filter)
}

func (s *countingStore) GetByIDs(ctx context.Context, collection string, ids []string) ([]driven.Point, error) {
	s.lookups++
	return s.VectorStore.GetByIDs(ctx, collection, ids)
}
