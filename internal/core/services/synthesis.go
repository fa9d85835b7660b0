package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure synthesizers implement the interface.
var (
	_ driven.Synthesizer = NoopSynthesizer{}
	_ driven.Synthesizer = (*LLMSynthesizer)(nil)
)

// NoopSynthesizer is used when no LLM is configured.
type NoopSynthesizer struct{}

// Synthesize always reports the LLM as unavailable.
func (NoopSynthesizer) Synthesize(context.Context, string, []domain.RetrievalResult, string) (string, error) {
	return "", domain.ErrLLMUnavailable
}

// Enabled always returns false.
func (NoopSynthesizer) Enabled() bool { return false }

// LLMSynthesizer answers queries from retrieved passages.
type LLMSynthesizer struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewLLMSynthesizer creates an LLM-backed synthesizer.
func NewLLMSynthesizer(llm driven.LLMService, prompts driven.PromptStore) *LLMSynthesizer {
	return &LLMSynthesizer{llm: llm, prompts: prompts}
}

// Enabled returns true.
func (s *LLMSynthesizer) Enabled() bool { return true }

// Synthesize generates an answer citing passages by number.
func (s *LLMSynthesizer) Synthesize(
	ctx context.Context, query string, results []domain.RetrievalResult, responsePattern string,
) (string, error) {
	tmpl, err := s.prompts.Load(driven.PromptSynthesize)
	if err != nil {
		return "", fmt.Errorf("%w: synthesis prompt: %w", domain.ErrDegradedFeature, err)
	}

	pattern, err := s.resolvePattern(responsePattern)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDegradedFeature, err)
	}

	prompt := fmt.Sprintf(tmpl, query, formatPassages(results), pattern)
	out, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 1024, Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("%w: synthesis: %w", domain.ErrDegradedFeature, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: synthesis: empty response", domain.ErrDegradedFeature)
	}
	return out, nil
}

// resolvePattern treats the pattern as a prompt name first, then as literal text.
func (s *LLMSynthesizer) resolvePattern(pattern string) (string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = "default"
	}
	if len(pattern) > 64 || strings.ContainsAny(pattern, " \t\n/\\.") {
		return pattern, nil
	}

	named, err := s.prompts.Load(driven.PromptPatternPrefix + pattern)
	switch {
	case err == nil:
		return named, nil
	case errors.Is(err, domain.ErrNotFound):
		return pattern, nil
	default:
		return "", fmt.Errorf("response pattern %q: %w", pattern, err)
	}
}
