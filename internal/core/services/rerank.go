package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure rerankers implement the interface.
var (
	_ driven.Reranker = NoopReranker{}
	_ driven.Reranker = (*LLMReranker)(nil)
)

// NoopReranker keeps similarity order.
type NoopReranker struct{}

// Rerank returns results unchanged.
func (NoopReranker) Rerank(_ context.Context, _ string, results []domain.RetrievalResult) ([]domain.RetrievalResult, error) {
	return results, nil
}

// Enabled always returns false.
func (NoopReranker) Enabled() bool { return false }

// LLMReranker asks an LLM to order passages by relevance.
type LLMReranker struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewLLMReranker creates an LLM-backed reranker.
func NewLLMReranker(llm driven.LLMService, prompts driven.PromptStore) *LLMReranker {
	return &LLMReranker{llm: llm, prompts: prompts}
}

// Enabled returns true.
func (r *LLMReranker) Enabled() bool { return true }

// Rerank returns results in the order the LLM ranks them.
// Passages the LLM omits keep their relative similarity order after the ranked ones.
// Out-of-range or duplicate numbers make the whole response invalid.
func (r *LLMReranker) Rerank(
	ctx context.Context, query string, results []domain.RetrievalResult,
) ([]domain.RetrievalResult, error) {
	if len(results) < 2 {
		return results, nil
	}

	tmpl, err := r.prompts.Load(driven.PromptRerank)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank prompt: %w", domain.ErrDegradedFeature, err)
	}

	out, err := r.llm.Generate(ctx, fmt.Sprintf(tmpl, query, formatPassages(results)), driven.GenerateOptions{
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %w", domain.ErrDegradedFeature, err)
	}

	order, err := parseRanking(out, len(results))
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %w", domain.ErrDegradedFeature, err)
	}

	ranked := make([]domain.RetrievalResult, 0, len(results))
	seen := make([]bool, len(results))
	for _, n := range order {
		ranked = append(ranked, results[n-1])
		seen[n-1] = true
	}
	for i, res := range results {
		if !seen[i] {
			ranked = append(ranked, res)
		}
	}
	return ranked, nil
}

// parseRanking extracts the first JSON integer array from an LLM response.
func parseRanking(out string, n int) ([]int, error) {
	start := strings.Index(out, "[")
	end := strings.Index(out[max(start, 0):], "]")
	if start < 0 || end < 0 {
		return nil, fmt.Errorf("no ranking array in response %q", truncateForError(out))
	}

	var order []int
	if err := json.Unmarshal([]byte(out[start:start+end+1]), &order); err != nil {
		return nil, fmt.Errorf("parse ranking %q: %w", truncateForError(out), err)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("empty ranking")
	}

	seen := make(map[int]bool, len(order))
	for _, v := range order {
		if v < 1 || v > n {
			return nil, fmt.Errorf("passage number %d out of range 1..%d", v, n)
		}
		if seen[v] {
			return nil, fmt.Errorf("passage number %d ranked twice", v)
		}
		seen[v] = true
	}
	return order, nil
}

func truncateForError(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
