package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockAIValidator records what it was asked to validate.
type mockAIValidator struct {
	embedErr  error
	llmErr    error
	embedding *domain.EmbeddingSettings
	llm       *domain.LLMSettings
}

func (v *mockAIValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	v.embedding = cfg
	return v.embedErr
}

func (v *mockAIValidator) ValidateLLM(cfg *domain.LLMSettings) error {
	v.llm = cfg
	return v.llmErr
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultSettings()
	assert.Equal(t, defaults.Chunking.MaxChunkSize, settings.Chunking.MaxChunkSize)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, domain.VectorStoreSQLite, settings.VectorStore.Provider)
	assert.False(t, settings.LLM.IsConfigured())
}

func TestSettingsService_Get_OverlaysStoredValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	store := memory.NewConfigStore()
	require.NoError(t, store.Set("embedding.provider", "OpenAI"))
	require.NoError(t, store.Set("embedding.model", "text-embedding-3-large"))
	require.NoError(t, store.Set("embedding.dimensions", 1024))
	require.NoError(t, store.Set("embedding.timeout", "45s"))
	require.NoError(t, store.Set("embedding.requests_per_second", 2.5))
	require.NoError(t, store.Set("chunking.min_chunk_size", 80))
	require.NoError(t, store.Set("chunking.hierarchical", false))
	require.NoError(t, store.Set("chunking.thresholds.philosophy", 0.5))
	require.NoError(t, store.Set("chunking.thresholds.Law", 0.7))
	require.NoError(t, store.Set("retrieval.synthesis_timeout", 90))
	require.NoError(t, store.Set("retrieval.context_mode", "Comprehensive"))

	settings, err := NewSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, 1024, settings.Embedding.ResolvedDimensions())
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
	assert.Empty(t, settings.Embedding.BaseURL)
	assert.Equal(t, 45*time.Second, settings.Embedding.Timeout)
	assert.InDelta(t, 2.5, settings.Embedding.RequestsPerSecond, 1e-9)

	assert.Equal(t, 80, settings.Chunking.MinChunkSize)
	assert.False(t, settings.Chunking.Hierarchical)
	assert.InDelta(t, 0.5, settings.Chunking.ThresholdFor("philosophy"), 1e-9)
	assert.InDelta(t, 0.7, settings.Chunking.ThresholdFor("law"), 1e-9)
	// Defaults for domains not configured survive.
	assert.InDelta(t, 0.8, settings.Chunking.ThresholdFor("technical"), 1e-9)

	assert.Equal(t, 90*time.Second, settings.Retrieval.SynthesisTimeout)
	assert.Equal(t, domain.ContextComprehensive, settings.Retrieval.ContextMode)
}

func TestSettingsService_Get_APIKeyEnvOverride(t *testing.T) {
	t.Setenv("MY_ANTHROPIC", "key-123")
	store := memory.NewConfigStore()
	require.NoError(t, store.Set("llm.provider", "anthropic"))
	require.NoError(t, store.Set("llm.api_key_env", "MY_ANTHROPIC"))

	settings, err := NewSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, "key-123", settings.LLM.APIKey)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
	assert.True(t, settings.LLM.IsConfigured())
}

func TestSettingsService_Get_PipelineFollowsEmbeddingBatching(t *testing.T) {
	store := memory.NewConfigStore()
	require.NoError(t, store.Set("embedding.batch_size", 8))
	require.NoError(t, store.Set("embedding.concurrency", 4))

	settings, err := NewSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, 8, settings.Pipeline.GetProcessorConfig("chunker")["batch_size"])
	assert.Equal(t, 4, settings.Pipeline.GetProcessorConfig("chunker")["concurrency"])
	assert.Equal(t, 8, settings.Pipeline.GetProcessorConfig("embedder")["batch_size"])
}

func TestSettingsService_Get_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"inverted chunk sizes", "chunking.min_chunk_size", 5000},
		{"qdrant without url", "vector_store.provider", "qdrant"},
		{"bad context mode", "retrieval.context_mode", "everything"},
		{"threshold out of range", "chunking.thresholds.poetry", 1.4},
		{"unknown tie break", "chunking.tie_break", "random"},
		{"unknown embedding provider", "embedding.provider", "cohere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			require.NoError(t, store.Set(tt.key, tt.value))
			service := NewSettingsService(store, nil)

			_, err := service.Get()

			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.ErrorIs(t, service.Validate(), domain.ErrConfiguration)
		})
	}
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.AIProviderOpenAI], settings.Embedding.Model)
	assert.Empty(t, settings.Embedding.BaseURL)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "nomic-embed-text"))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Equal(t, 768, store.GetInt("embedding.dimensions"))
}

func TestSettingsService_SetEmbeddingProvider_RejectsLLMOnlyProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	err := service.SetEmbeddingProvider(domain.AIProviderAnthropic, "")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderOllama, "llama3.2"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.LLM.Provider)
	assert.Equal(t, "llama3.2", settings.LLM.Model)
	assert.Equal(t, "http://localhost:11434", settings.LLM.BaseURL)

	assert.ErrorIs(t, service.SetLLMProvider("gemini", ""), domain.ErrConfiguration)
}

func TestSettingsService_SetVectorStore(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.ErrorIs(t, service.SetVectorStore(domain.VectorStoreQdrant, ""), domain.ErrConfiguration)
	assert.ErrorIs(t, service.SetVectorStore("pinecone", "x"), domain.ErrConfiguration)
	require.NoError(t, service.SetVectorStore(domain.VectorStoreQdrant, "http://localhost:6333"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.VectorStoreQdrant, settings.VectorStore.Provider)
	assert.Equal(t, "http://localhost:6333", settings.VectorStore.URL)
}

func TestSettingsService_SetDomainThreshold(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	require.NoError(t, service.SetDomainThreshold(" Poetry ", 0.45))
	assert.ErrorIs(t, service.SetDomainThreshold("law", 1.5), domain.ErrConfiguration)
	assert.ErrorIs(t, service.SetDomainThreshold("", 0.5), domain.ErrInvalidInput)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.InDelta(t, 0.45, settings.Chunking.ThresholdFor("poetry"), 1e-9)
}

func TestSettingsService_ValidateProviders(t *testing.T) {
	validator := &mockAIValidator{llmErr: errors.New("unreachable")}
	service := NewSettingsService(memory.NewConfigStore(), validator)

	require.NoError(t, service.ValidateEmbeddingConfig())
	require.NotNil(t, validator.embedding)
	assert.Equal(t, domain.AIProviderOllama, validator.embedding.Provider)

	assert.ErrorContains(t, service.ValidateLLMConfig(), "unreachable")
	assert.NotNil(t, validator.llm)
}

func TestSettingsService_ValidateWithoutValidator(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.NoError(t, service.ValidateEmbeddingConfig())
	assert.NoError(t, service.ValidateLLMConfig())
}
