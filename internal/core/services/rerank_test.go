package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func results(texts ...string) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, len(texts))
	for i, t := range texts {
		out[i] = domain.RetrievalResult{
			Chunk: domain.Chunk{ID: t, Level: domain.LevelFlat, Text: t},
			Score: 1 - float64(i)/10,
		}
	}
	return out
}

func ids(rs []domain.RetrievalResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestNoopReranker(t *testing.T) {
	in := results("a", "b")

	out, err := NoopReranker{}.Rerank(context.Background(), "q", in)

	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.False(t, NoopReranker{}.Enabled())
}

func TestLLMReranker_Rerank(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"bare array", "[3, 1, 2]", []string{"c", "a", "b"}},
		{"wrapped in prose", "Sure! The order is [2,3,1] based on relevance.", []string{"b", "c", "a"}},
		{"omitted keep similarity order", "[3]", []string{"c", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLMService{response: tt.response}
			r := NewLLMReranker(llm, newMockPromptStore())

			out, err := r.Rerank(context.Background(), "which?", results("a", "b", "c"))

			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
			assert.Contains(t, llm.lastPrompt(), "Q: which?")
			assert.Contains(t, llm.lastPrompt(), "[2] b")
		})
	}
}

func TestLLMReranker_InvalidResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no array", "passage two is best"},
		{"out of range", "[1, 4]"},
		{"zero", "[0, 1]"},
		{"duplicate", "[1, 1, 2]"},
		{"empty", "[]"},
		{"not numbers", `["a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLLMReranker(&mockLLMService{response: tt.response}, newMockPromptStore())

			_, err := r.Rerank(context.Background(), "q", results("a", "b", "c"))

			assert.ErrorIs(t, err, domain.ErrDegradedFeature)
		})
	}
}

func TestLLMReranker_LLMError(t *testing.T) {
	r := NewLLMReranker(&mockLLMService{err: errors.New("overloaded")}, newMockPromptStore())

	_, err := r.Rerank(context.Background(), "q", results("a", "b"))

	assert.ErrorIs(t, err, domain.ErrDegradedFeature)
	assert.ErrorContains(t, err, "overloaded")
}

func TestLLMReranker_SingleResultSkipsLLM(t *testing.T) {
	llm := &mockLLMService{response: "[1]"}

	out, err := NewLLMReranker(llm, newMockPromptStore()).Rerank(context.Background(), "q", results("a"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(out))
	assert.Empty(t, llm.prompts)
}

func TestNoopSynthesizer(t *testing.T) {
	_, err := NoopSynthesizer{}.Synthesize(context.Background(), "q", results("a"), "")

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.False(t, NoopSynthesizer{}.Enabled())
}

func TestLLMSynthesizer_Patterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"default", "", "Format: plain answer"},
		{"named", "summary", "Format: bullet summary"},
		{"unknown name is literal", "haiku", "Format: haiku"},
		{"literal text", "Answer in one sentence.", "Format: Answer in one sentence."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLMService{response: "answer"}
			s := NewLLMSynthesizer(llm, newMockPromptStore())

			out, err := s.Synthesize(context.Background(), "q", results("a"), tt.pattern)

			require.NoError(t, err)
			assert.Equal(t, "answer", out)
			assert.Contains(t, llm.lastPrompt(), tt.want)
		})
	}
}

func TestLLMSynthesizer_EmptyResponse(t *testing.T) {
	s := NewLLMSynthesizer(&mockLLMService{response: "  \n"}, newMockPromptStore())

	_, err := s.Synthesize(context.Background(), "q", results("a"), "")

	assert.ErrorIs(t, err, domain.ErrDegradedFeature)
}

func TestFormatPassages_ClipsLongText(t *testing.T) {
	long := make([]byte, 0, 5000)
	for i := 0; i < maxPassageWords+50; i++ {
		long = append(long, "word "...)
	}
	rs := results("short")
	rs = append(rs, domain.RetrievalResult{Chunk: domain.Chunk{ID: "long", Text: string(long)}})

	out := formatPassages(rs)

	assert.Contains(t, out, "[1] short\n\n[2] word")
	assert.Contains(t, out, " ...")
	assert.Equal(t, maxPassageWords+2+2, domain.CountWords(out))
}
