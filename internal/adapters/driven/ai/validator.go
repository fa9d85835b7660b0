package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// dimensionSample is embedded once to measure the model's real vector size.
const dimensionSample = "dimension check"

// ConfigValidator checks provider settings against the live provider.
//
// Embedding settings are also checked for vector size: a sample text is
// embedded and its length compared with the dimensions collections will be
// created with. A model swapped behind the same name would otherwise only
// surface as an upload failure.
type ConfigValidator struct {
	timeout time.Duration
}

// ValidatorOption configures a ConfigValidator.
type ValidatorOption func(*ConfigValidator)

// WithValidationTimeout bounds each validation. Defaults to pingTimeout.
func WithValidationTimeout(d time.Duration) ValidatorOption {
	return func(v *ConfigValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator(opts ...ValidatorOption) *ConfigValidator {
	v := &ConfigValidator{timeout: pingTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateEmbedding pings the embedding provider and verifies the vector size.
// Nil or unconfigured settings are not an error.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	if settings == nil {
		return nil
	}
	if settings.Dimensions < 0 {
		return fmt.Errorf("%w: embedding dimensions must not be negative, got %d",
			domain.ErrConfiguration, settings.Dimensions)
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return err
	}
	vector, err := svc.Embed(ctx, dimensionSample)
	if err != nil {
		return fmt.Errorf("sample embedding failed: %w", err)
	}
	if len(vector) != svc.Dimensions() {
		return domain.DimensionError("model "+svc.ModelName(), svc.Dimensions(), len(vector))
	}
	return nil
}

// ValidateLLM pings the LLM provider. Nil or unconfigured settings are not an error.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	return svc.Ping(ctx)
}
