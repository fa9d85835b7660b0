package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "books"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API or any compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API (LLM only).
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorStoreProvider identifies a vector store backend.
type VectorStoreProvider string

// Available vector store providers.
const (
	// VectorStoreSQLite stores points in the local sqlite database.
	VectorStoreSQLite VectorStoreProvider = "sqlite"

	// VectorStoreQdrant talks to a Qdrant server over REST.
	VectorStoreQdrant VectorStoreProvider = "qdrant"

	// VectorStoreMemory keeps points in process memory.
	VectorStoreMemory VectorStoreProvider = "memory"
)

// IsValid returns true if the provider is recognised.
func (p VectorStoreProvider) IsValid() bool {
	switch p {
	case VectorStoreSQLite, VectorStoreQdrant, VectorStoreMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p VectorStoreProvider) String() string {
	return string(p)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's known vector size.
	Dimensions int

	// Timeout bounds every embedding request.
	Timeout time.Duration

	// BatchSize is the number of texts sent per request.
	BatchSize int

	// Concurrency is the number of batches in flight.
	Concurrency int

	// RequestsPerSecond throttles requests when positive.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" && e.BaseURL == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns the configured dimensions or the known model size.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds every generation request.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorStoreSettings holds vector store configuration.
type VectorStoreSettings struct {
	// Provider is the vector store backend.
	Provider VectorStoreProvider

	// URL is the server endpoint (for Qdrant).
	URL string

	// APIKey authenticates against the server (for Qdrant).
	APIKey string

	// Timeout bounds every store request.
	Timeout time.Duration
}

// ChunkingSettings holds chunking defaults and per-domain thresholds.
type ChunkingSettings struct {
	MinChunkSize     int
	MaxChunkSize     int
	ParentMaxWords   int
	Hierarchical     bool
	TieBreak         TieBreakPolicy
	DefaultThreshold float64

	// Thresholds maps a domain name to its similarity threshold.
	// Argumentative domains use lower values to keep arguments together.
	Thresholds map[string]float64
}

// ThresholdFor resolves the similarity threshold for a domain.
func (c ChunkingSettings) ThresholdFor(domain string) float64 {
	if t, ok := c.Thresholds[strings.ToLower(strings.TrimSpace(domain))]; ok {
		return t
	}
	return c.DefaultThreshold
}

// Params builds chunking parameters for a domain.
func (c ChunkingSettings) Params(domain string) ChunkingParams {
	return ChunkingParams{
		MinChunkSize:   c.MinChunkSize,
		MaxChunkSize:   c.MaxChunkSize,
		Threshold:      c.ThresholdFor(domain),
		Hierarchical:   c.Hierarchical,
		ParentMaxWords: c.ParentMaxWords,
		TieBreak:       c.TieBreak,
	}
}

// RetrievalSettings holds retrieval defaults.
type RetrievalSettings struct {
	Collection          string
	Limit               int
	SimilarityThreshold float64
	FetchMultiplier     int
	FetchFloor          int
	ContextMode         ContextMode
	SiblingWindow       int
	RerankTimeout       time.Duration
	SynthesisTimeout    time.Duration
}

// Params builds retrieval parameters from the defaults.
func (r RetrievalSettings) Params() RetrievalParams {
	return RetrievalParams{
		Collection:          r.Collection,
		Limit:               r.Limit,
		SimilarityThreshold: r.SimilarityThreshold,
		ContextMode:         r.ContextMode,
		FetchMultiplier:     r.FetchMultiplier,
		FetchFloor:          r.FetchFloor,
		SiblingWindow:       r.SiblingWindow,
	}
}

// UploadSettings holds upload tuning.
type UploadSettings struct {
	// BatchSize is the number of points per upsert request.
	BatchSize int
}

// Settings holds all application settings.
type Settings struct {
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorStore VectorStoreSettings
	Chunking    ChunkingSettings
	Retrieval   RetrievalSettings
	Upload      UploadSettings
	Pipeline    PipelineConfig
}

// DefaultSettings returns settings with sensible defaults.
// The LLM is left unconfigured, so rerank and synthesis are no-ops until set up.
func DefaultSettings() Settings {
	chunking := DefaultChunkingParams()
	retrieval := DefaultRetrievalParams()

	return Settings{
		Embedding: EmbeddingSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:     "http://localhost:11434",
			Timeout:     60 * time.Second,
			BatchSize:   32,
			Concurrency: 2,
		},
		LLM: LLMSettings{
			Timeout: 120 * time.Second,
		},
		VectorStore: VectorStoreSettings{
			Provider: VectorStoreSQLite,
			Timeout:  30 * time.Second,
		},
		Chunking: ChunkingSettings{
			MinChunkSize:     chunking.MinChunkSize,
			MaxChunkSize:     chunking.MaxChunkSize,
			ParentMaxWords:   chunking.ParentMaxWords,
			Hierarchical:     chunking.Hierarchical,
			TieBreak:         chunking.TieBreak,
			DefaultThreshold: chunking.Threshold,
			Thresholds: map[string]float64{
				"philosophy": 0.55,
				"history":    0.65,
				"general":    0.75,
				"technical":  0.8,
			},
		},
		Retrieval: RetrievalSettings{
			Collection:          retrieval.Collection,
			Limit:               retrieval.Limit,
			SimilarityThreshold: retrieval.SimilarityThreshold,
			FetchMultiplier:     retrieval.FetchMultiplier,
			FetchFloor:          retrieval.FetchFloor,
			ContextMode:         retrieval.ContextMode,
			SiblingWindow:       retrieval.SiblingWindow,
			RerankTimeout:       20 * time.Second,
			SynthesisTimeout:    60 * time.Second,
		},
		Upload: UploadSettings{
			BatchSize: 64,
		},
		Pipeline: DefaultPipelineConfig(),
	}
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if s.Embedding.Provider != AIProviderOllama && s.Embedding.Provider != AIProviderOpenAI {
		return fmt.Errorf("%w: unsupported embedding provider %q", ErrConfiguration, s.Embedding.Provider)
	}
	if s.LLM.Provider != "" && !s.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: unsupported llm provider %q", ErrConfiguration, s.LLM.Provider)
	}
	if !s.VectorStore.Provider.IsValid() {
		return fmt.Errorf("%w: unsupported vector store %q", ErrConfiguration, s.VectorStore.Provider)
	}
	if s.VectorStore.Provider == VectorStoreQdrant && s.VectorStore.URL == "" {
		return fmt.Errorf("%w: vector_store.url is required for qdrant", ErrConfiguration)
	}
	if err := s.Chunking.Params("").Validate(); err != nil {
		return err
	}
	for name, t := range s.Chunking.Thresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("%w: threshold for domain %q outside [0, 1]", ErrConfiguration, name)
		}
	}
	if !s.Retrieval.ContextMode.IsValid() {
		return fmt.Errorf("%w: unknown context mode %q", ErrConfiguration, s.Retrieval.ContextMode)
	}
	if s.Retrieval.SiblingWindow < 1 {
		return fmt.Errorf("%w: retrieval.sibling_window must be at least 1", ErrConfiguration)
	}
	if s.Upload.BatchSize <= 0 {
		return fmt.Errorf("%w: upload.batch_size must be positive", ErrConfiguration)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig returns the default pipeline: chunk, then embed.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "embedder"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"batch_size":  32,
				"concurrency": 2,
			},
			"embedder": {
				"batch_size": 32,
			},
		},
	}
}
