package chunker

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// chainEmbeddings builds 2D unit vectors whose consecutive cosine similarities
// equal sims.
func chainEmbeddings(sims []float64) [][]float32 {
	angle := 0.0
	out := [][]float32{{1, 0}}
	for _, s := range sims {
		angle += math.Acos(s)
		out = append(out, []float32{float32(math.Cos(angle)), float32(math.Sin(angle))})
	}
	return out
}

func uniformEmbeddings(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out
}

func mustDetector(t *testing.T, cfg BoundaryConfig) *BoundaryDetector {
	t.Helper()
	d, err := NewBoundaryDetector(cfg)
	require.NoError(t, err)
	return d
}

func spanTexts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

func TestDetect_SplitsAtLowSimilarity(t *testing.T) {
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 1, MaxChunkSize: 100})

	spans, err := d.DetectTexts([]string{"A.", "B.", "C.", "D."}, chainEmbeddings([]float64{0.9, 0.3, 0.9}))

	require.NoError(t, err)
	assert.Equal(t, []string{"A. B.", "C. D."}, spanTexts(spans))
	assert.Equal(t, ReasonSimilarity, spans[0].Reason)
	assert.Equal(t, ReasonEndOfText, spans[1].Reason)
	assert.Equal(t, 0, spans[0].FirstSentence)
	assert.Equal(t, 1, spans[0].LastSentence)
	assert.Equal(t, 0, spans[0].StartOffset)
	assert.Equal(t, len("A. B."), spans[0].EndOffset)
}

func TestDetect_OversizedSentenceIsOwnChunk(t *testing.T) {
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 100, MaxChunkSize: 1200})
	long := strings.TrimSpace(strings.Repeat("word ", 2000)) + "."

	spans, err := d.DetectTexts([]string{long}, uniformEmbeddings(1))

	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, long, spans[0].Text)
	assert.Equal(t, 2000, spans[0].WordCount)
	assert.Equal(t, ReasonOversized, spans[0].Reason)
}

func TestDetect_OversizedSentenceBetweenOthers(t *testing.T) {
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 1, MaxChunkSize: 5})
	long := "one two three four five six seven."

	spans, err := d.DetectTexts([]string{"Short one.", long, "Short two."}, uniformEmbeddings(3))

	require.NoError(t, err)
	assert.Equal(t, []string{"Short one.", long, "Short two."}, spanTexts(spans))
	assert.Equal(t, ReasonMaxSize, spans[0].Reason)
	assert.Equal(t, ReasonOversized, spans[1].Reason)
}

func TestDetect_LowSimilarityBelowMinKeepsAccumulating(t *testing.T) {
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 4, MaxChunkSize: 100})

	spans, err := d.DetectTexts(
		[]string{"One.", "Two.", "Three.", "Four.", "Five."},
		chainEmbeddings([]float64{0.1, 0.1, 0.1, 0.1}),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"One. Two. Three. Four.", "Five."}, spanTexts(spans))
}

func TestDetect_ForceClosesAtMaxSize(t *testing.T) {
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 1, MaxChunkSize: 4})

	spans, err := d.DetectTexts(
		[]string{"a b.", "c d.", "e f.", "g h.", "i j."},
		uniformEmbeddings(5),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"a b. c d.", "e f. g h.", "i j."}, spanTexts(spans))
	assert.Equal(t, ReasonMaxSize, spans[0].Reason)
}

func TestDetect_TieBreakPolicies(t *testing.T) {
	texts := []string{"a b.", "c d.", "e f."}
	// Span reaches max (4 words) at sentence 1, where similarity also drops.
	embeddings := chainEmbeddings([]float64{0.95, 0.1})

	tests := []struct {
		policy domain.TieBreakPolicy
		reason BoundaryReason
	}{
		{domain.TieBreakMaxSizeWins, ReasonMaxSize},
		{"", ReasonMaxSize},
		{domain.TieBreakSimilarityWins, ReasonSimilarity},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 1, MaxChunkSize: 4, TieBreak: tt.policy})

			spans, err := d.DetectTexts(texts, embeddings)

			require.NoError(t, err)
			assert.Equal(t, []string{"a b. c d.", "e f."}, spanTexts(spans))
			assert.Equal(t, tt.reason, spans[0].Reason)
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	texts, embeddings := randomInput(rand.New(rand.NewSource(7)), 200, 30)
	d := mustDetector(t, BoundaryConfig{Threshold: 0.6, MinChunkSize: 40, MaxChunkSize: 120})

	first, err := d.DetectTexts(texts, embeddings)
	require.NoError(t, err)
	second, err := d.DetectTexts(texts, embeddings)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetect_SizeInvariantAndPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const minSize, maxSize = 40, 120

	for trial := 0; trial < 50; trial++ {
		// Sentences no longer than max-min always leave room to reach min.
		texts, embeddings := randomInput(rng, 1+rng.Intn(150), maxSize-minSize)
		d := mustDetector(t, BoundaryConfig{Threshold: rng.Float64(), MinChunkSize: minSize, MaxChunkSize: maxSize})

		spans, err := d.DetectTexts(texts, embeddings)
		require.NoError(t, err)

		next := 0
		for i, s := range spans {
			assert.Equal(t, next, s.FirstSentence, "spans must be contiguous")
			next = s.LastSentence + 1

			assert.LessOrEqual(t, s.WordCount, maxSize)
			if i < len(spans)-1 {
				assert.GreaterOrEqual(t, s.WordCount, minSize)
			}
		}
		assert.Equal(t, len(texts), next, "every sentence belongs to a span")
		assert.Equal(t, strings.Join(texts, " "), strings.Join(spanTexts(spans), " "))
	}
}

func TestDetect_MaxBoundWinsOverMinBound(t *testing.T) {
	texts := []string{wordSentence(30), wordSentence(100), wordSentence(30)}
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 40, MaxChunkSize: 120})

	spans, err := d.DetectTexts(texts, uniformEmbeddings(3))

	require.NoError(t, err)
	require.Len(t, spans, 3)
	assert.Equal(t, []int{30, 100, 30}, []int{spans[0].WordCount, spans[1].WordCount, spans[2].WordCount})
	// 30+100 would exceed max, so the first span closes below min.
	assert.Equal(t, ReasonMaxSize, spans[0].Reason)
	assert.Equal(t, ReasonEndOfText, spans[2].Reason)
}

func TestDetect_UndersizedSpansOnlyWhenNextSentenceCannotFit(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const minSize, maxSize = 40, 120

	for trial := 0; trial < 50; trial++ {
		texts, embeddings := randomInput(rng, 1+rng.Intn(100), maxSize)
		d := mustDetector(t, BoundaryConfig{Threshold: rng.Float64(), MinChunkSize: minSize, MaxChunkSize: maxSize})

		spans, err := d.DetectTexts(texts, embeddings)
		require.NoError(t, err)

		for i, s := range spans[:len(spans)-1] {
			if s.WordCount >= minSize {
				continue
			}
			next := domain.CountWords(texts[spans[i+1].FirstSentence])
			assert.Equal(t, ReasonMaxSize, s.Reason)
			assert.Greater(t, s.WordCount+next, maxSize)
		}
	}
}

func wordSentence(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n)) + "."
}

func TestDetect_Errors(t *testing.T) {
	d := mustDetector(t, BoundaryConfig{Threshold: 0.5, MinChunkSize: 1, MaxChunkSize: 10})

	_, err := d.DetectTexts([]string{"A.", "B."}, uniformEmbeddings(1))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = d.DetectTexts([]string{"A.", "B."}, [][]float32{{1, 0}, {1, 0, 0}})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	spans, err := d.DetectTexts(nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, spans)
}

func TestNewBoundaryDetector_RejectsInvalidConfig(t *testing.T) {
	_, err := NewBoundaryDetector(BoundaryConfig{Threshold: 0.5, MinChunkSize: 10, MaxChunkSize: 5})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewBoundaryDetector(BoundaryConfig{Threshold: 2, MinChunkSize: 1, MaxChunkSize: 5})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	d, err := NewBoundaryDetector(BoundaryConfig{Threshold: 0.5, MinChunkSize: 1, MaxChunkSize: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.TieBreakMaxSizeWins, d.Config().TieBreak)
}

func randomInput(rng *rand.Rand, n, maxWords int) ([]string, [][]float32) {
	texts := make([]string, n)
	embeddings := make([][]float32, n)
	for i := range texts {
		words := make([]string, 1+rng.Intn(maxWords))
		for j := range words {
			words[j] = "w"
		}
		texts[i] = strings.Join(words, " ") + "."
		embeddings[i] = []float32{rng.Float32() + 0.01, rng.Float32(), rng.Float32()}
	}
	return texts, embeddings
}
