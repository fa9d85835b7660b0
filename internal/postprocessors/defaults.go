package postprocessors

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/embedder"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("embedder", buildEmbedder)
}

// NewDefaultRegistry returns a registry with the built-in processors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - batch_size (int): Sentences per embedding request (default: 32)
//   - concurrency (int): Embedding requests in flight (default: 2)
func buildChunker(deps Dependencies, cfg map[string]any) (driven.PostProcessor, error) {
	if deps.Embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	var opts []chunker.Option
	if size := getIntFromConfig(cfg, "batch_size"); size > 0 {
		opts = append(opts, chunker.WithBatchSize(size))
	}
	if n := getIntFromConfig(cfg, "concurrency"); n > 0 {
		opts = append(opts, chunker.WithConcurrency(n))
	}

	return chunker.New(deps.Embedder, opts...), nil
}

// buildEmbedder creates an embedder processor from generic config.
// Supported config keys:
//   - batch_size (int): Chunks per embedding request (default: 32)
//   - concurrency (int): Embedding requests in flight (default: 2)
func buildEmbedder(deps Dependencies, cfg map[string]any) (driven.PostProcessor, error) {
	if deps.Embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	var opts []embedder.Option
	if size := getIntFromConfig(cfg, "batch_size"); size > 0 {
		opts = append(opts, embedder.WithBatchSize(size))
	}
	if n := getIntFromConfig(cfg, "concurrency"); n > 0 {
		opts = append(opts, embedder.WithConcurrency(n))
	}

	return embedder.New(deps.Embedder, opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
