package services

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Default environment variables holding API keys.
const (
	defaultOpenAIKeyEnv    = "OPENAI_API_KEY"
	defaultAnthropicKeyEnv = "ANTHROPIC_API_KEY"
	defaultQdrantKeyEnv    = "QDRANT_API_KEY"
)

// defaultOllamaURL is written when switching to a local provider.
const defaultOllamaURL = "http://localhost:11434"

// SettingsService reads and updates application settings through a ConfigStore.
// API keys are never stored; the *_env keys name environment variables.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
// aiValidator is optional (can be nil); without it validation only checks values.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get overlays configured values on domain.DefaultSettings and validates the result.
func (s *SettingsService) Get() (domain.Settings, error) {
	return LoadSettings(s.configStore)
}

// LoadSettings builds typed settings from a ConfigStore.
func LoadSettings(store driven.ConfigStore) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	loadEmbedding(store, &settings.Embedding)
	loadLLM(store, &settings.LLM)
	loadVectorStore(store, &settings.VectorStore)
	loadChunking(store, &settings.Chunking)
	loadRetrieval(store, &settings.Retrieval)
	setInt(store, "upload.batch_size", &settings.Upload.BatchSize)
	loadPipeline(store, &settings)

	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("%s: %w", store.Path(), err)
	}
	return settings, nil
}

// SetEmbeddingProvider switches the embedding provider.
// An empty model selects the provider default and records its dimensions.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrConfiguration, provider)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	updates := map[string]any{
		"embedding.provider": string(provider),
		"embedding.model":    model,
		"embedding.base_url": "",
	}
	if provider.IsLocal() {
		updates["embedding.base_url"] = defaultOllamaURL
	}
	if d, ok := domain.EmbeddingDimensions()[model]; ok {
		updates["embedding.dimensions"] = d
	}
	return s.apply(updates)
}

// SetLLMProvider switches the LLM provider used for rerank and synthesis.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrConfiguration, provider)
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}

	updates := map[string]any{
		"llm.provider": string(provider),
		"llm.model":    model,
		"llm.base_url": "",
	}
	if provider.IsLocal() {
		updates["llm.base_url"] = defaultOllamaURL
	}
	return s.apply(updates)
}

// SetVectorStore switches the vector store backend.
func (s *SettingsService) SetVectorStore(provider domain.VectorStoreProvider, url string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unsupported vector store %q", domain.ErrConfiguration, provider)
	}
	if provider == domain.VectorStoreQdrant && url == "" {
		return fmt.Errorf("%w: qdrant requires a url", domain.ErrConfiguration)
	}
	return s.apply(map[string]any{
		"vector_store.provider": string(provider),
		"vector_store.url":      url,
	})
}

// SetDomainThreshold sets the chunking similarity threshold for one domain.
func (s *SettingsService) SetDomainThreshold(name string, threshold float64) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("%w: domain name is required", domain.ErrInvalidInput)
	}
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: threshold %.3f outside [0, 1]", domain.ErrConfiguration, threshold)
	}
	return s.apply(map[string]any{"chunking.thresholds." + name: threshold})
}

// Validate checks the stored configuration without contacting providers.
func (s *SettingsService) Validate() error {
	_, err := s.Get()
	return err
}

// ValidateEmbeddingConfig pings the configured embedding provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig pings the configured LLM provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// apply writes every update and persists once.
func (s *SettingsService) apply(updates map[string]any) error {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := s.configStore.Set(k, updates[k]); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return s.configStore.Save()
}

func loadEmbedding(store driven.ConfigStore, e *domain.EmbeddingSettings) {
	if p := store.GetString("embedding.provider"); p != "" {
		e.Provider = domain.AIProvider(strings.ToLower(p))
		// Switching provider without naming a model picks that provider's default.
		e.Model = domain.DefaultEmbeddingModels()[e.Provider]
		if e.Provider != domain.AIProviderOllama {
			e.BaseURL = ""
		}
	}
	setString(store, "embedding.model", &e.Model)
	setString(store, "embedding.base_url", &e.BaseURL)
	setInt(store, "embedding.dimensions", &e.Dimensions)
	setDuration(store, "embedding.timeout", &e.Timeout)
	setInt(store, "embedding.batch_size", &e.BatchSize)
	setInt(store, "embedding.concurrency", &e.Concurrency)
	setFloat(store, "embedding.requests_per_second", &e.RequestsPerSecond)

	if e.Provider.RequiresAPIKey() {
		e.APIKey = os.Getenv(envName(store, "embedding.api_key_env", defaultOpenAIKeyEnv))
	}
}

func loadLLM(store driven.ConfigStore, l *domain.LLMSettings) {
	if p := store.GetString("llm.provider"); p != "" {
		l.Provider = domain.AIProvider(strings.ToLower(p))
		l.Model = domain.DefaultLLMModels()[l.Provider]
	}
	setString(store, "llm.model", &l.Model)
	setString(store, "llm.base_url", &l.BaseURL)
	setDuration(store, "llm.timeout", &l.Timeout)

	switch l.Provider {
	case domain.AIProviderOpenAI:
		l.APIKey = os.Getenv(envName(store, "llm.api_key_env", defaultOpenAIKeyEnv))
	case domain.AIProviderAnthropic:
		l.APIKey = os.Getenv(envName(store, "llm.api_key_env", defaultAnthropicKeyEnv))
	case domain.AIProviderOllama:
		if l.BaseURL == "" {
			l.BaseURL = "http://localhost:11434"
		}
	}
}

func loadVectorStore(store driven.ConfigStore, v *domain.VectorStoreSettings) {
	if p := store.GetString("vector_store.provider"); p != "" {
		v.Provider = domain.VectorStoreProvider(strings.ToLower(p))
	}
	setString(store, "vector_store.url", &v.URL)
	setDuration(store, "vector_store.timeout", &v.Timeout)
	v.APIKey = os.Getenv(envName(store, "vector_store.api_key_env", defaultQdrantKeyEnv))
}

func loadChunking(store driven.ConfigStore, c *domain.ChunkingSettings) {
	setInt(store, "chunking.min_chunk_size", &c.MinChunkSize)
	setInt(store, "chunking.max_chunk_size", &c.MaxChunkSize)
	setInt(store, "chunking.parent_max_words", &c.ParentMaxWords)
	setBool(store, "chunking.hierarchical", &c.Hierarchical)
	setFloat(store, "chunking.default_threshold", &c.DefaultThreshold)
	if tb := store.GetString("chunking.tie_break"); tb != "" {
		c.TieBreak = domain.TieBreakPolicy(tb)
	}

	const prefix = "chunking.thresholds."
	for _, key := range store.KeysWithPrefix(prefix) {
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		if c.Thresholds == nil {
			c.Thresholds = make(map[string]float64)
		}
		c.Thresholds[name] = store.GetFloat(key)
	}
}

func loadRetrieval(store driven.ConfigStore, r *domain.RetrievalSettings) {
	setString(store, "retrieval.collection", &r.Collection)
	setInt(store, "retrieval.limit", &r.Limit)
	setFloat(store, "retrieval.similarity_threshold", &r.SimilarityThreshold)
	setInt(store, "retrieval.fetch_multiplier", &r.FetchMultiplier)
	setInt(store, "retrieval.fetch_floor", &r.FetchFloor)
	setInt(store, "retrieval.sibling_window", &r.SiblingWindow)
	setDuration(store, "retrieval.rerank_timeout", &r.RerankTimeout)
	setDuration(store, "retrieval.synthesis_timeout", &r.SynthesisTimeout)
	if m := store.GetString("retrieval.context_mode"); m != "" {
		r.ContextMode = domain.ContextMode(strings.ToLower(m))
	}
}

// loadPipeline keeps pipeline batching in step with the embedding settings.
func loadPipeline(store driven.ConfigStore, s *domain.Settings) {
	if procs := store.GetStringSlice("pipeline.processors"); len(procs) > 0 {
		s.Pipeline.Processors = procs
	}
	if chunker := s.Pipeline.GetProcessorConfig("chunker"); chunker != nil {
		chunker["batch_size"] = s.Embedding.BatchSize
		chunker["concurrency"] = s.Embedding.Concurrency
	}
	if embedder := s.Pipeline.GetProcessorConfig("embedder"); embedder != nil {
		embedder["batch_size"] = s.Embedding.BatchSize
	}
}

func envName(store driven.ConfigStore, key, fallback string) string {
	if name := store.GetString(key); name != "" {
		return name
	}
	return fallback
}

func setString(store driven.ConfigStore, key string, dst *string) {
	if v := store.GetString(key); v != "" {
		*dst = v
	}
}

func setInt(store driven.ConfigStore, key string, dst *int) {
	if _, ok := store.Get(key); ok {
		*dst = store.GetInt(key)
	}
}

func setFloat(store driven.ConfigStore, key string, dst *float64) {
	if _, ok := store.Get(key); ok {
		*dst = store.GetFloat(key)
	}
}

func setBool(store driven.ConfigStore, key string, dst *bool) {
	if _, ok := store.Get(key); ok {
		*dst = store.GetBool(key)
	}
}

func setDuration(store driven.ConfigStore, key string, dst *time.Duration) {
	if d := store.GetDuration(key); d > 0 {
		*dst = d
	}
}
