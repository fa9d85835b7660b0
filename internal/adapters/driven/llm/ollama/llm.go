// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService generates text through the langchaingo Ollama chat client.
type LLMService struct {
	llm     llms.Model
	client  *http.Client
	baseURL string
	model   string
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: ollama: invalid base url %q: %w", domain.ErrConfiguration, baseURL, err)
	}
	client := &http.Client{Timeout: cfg.Timeout}
	llm, err := lcollama.New(
		lcollama.WithServerURL(baseURL),
		lcollama.WithModel(cfg.Model),
		lcollama.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %w", domain.ErrConfiguration, err)
	}

	return &LLMService{
		llm:     llm,
		client:  client,
		baseURL: baseURL,
		model:   cfg.Model,
	}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	var callOpts []llms.CallOption
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if len(opts.StopWords) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(opts.StopWords))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt, callOpts...)
	if err != nil {
		return "", classify(err)
	}
	return out, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: ping failed: %w", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama: API returned status %d", domain.ErrConnectivity, resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// classify maps a client error onto a domain error kind. The chat stream
// reports server errors by message only, so a missing model is recognised
// by its text.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: ollama: %w", domain.ErrConnectivity, err)
	case strings.Contains(err.Error(), "not found"):
		return fmt.Errorf("%w: ollama: %w", domain.ErrConfiguration, err)
	default:
		return fmt.Errorf("%w: ollama: %w", domain.ErrConnectivity, err)
	}
}
