package driving

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (domain.Settings, error)

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model string) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model string) error

	// SetVectorStore configures the vector store backend.
	SetVectorStore(provider domain.VectorStoreProvider, url string) error

	// SetDomainThreshold sets the chunking threshold for a domain.
	SetDomainThreshold(name string, threshold float64) error

	// Validate checks the stored settings without contacting providers.
	Validate() error

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
