// Package app wires the driven adapters selected by settings to the core
// services. The CLI and the MCP server share one App per process.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/metrics"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/bookmeta"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// App owns the adapters for one process. Storage and AI providers are opened
// on first use so commands that only read settings never contact them.
type App struct {
	configDir string
	settings  *services.SettingsService
	prompts   *file.PromptStore
	metrics   *metrics.Metrics
	loader    *normalisers.Loader

	mu        sync.Mutex
	backends  *storage.Backends
	ai        *ai.InitResult
	ingestion *services.IngestionService
	retrieval *services.RetrievalService
}

// New creates an App rooted at configDir. Empty means ~/.sercha-rag.
func New(configDir string) (*App, error) {
	if configDir == "" {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		configDir = dir
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return nil, err
	}

	return &App{
		configDir: configDir,
		settings:  services.NewSettingsService(configStore, ai.NewConfigValidator()),
		prompts:   prompts,
		metrics:   metrics.New(),
		loader:    normalisers.NewDefaultLoader(),
	}, nil
}

// ConfigDir returns the configuration directory.
func (a *App) ConfigDir() string {
	return a.configDir
}

// Settings returns the settings service.
func (a *App) Settings() *services.SettingsService {
	return a.settings
}

// Metrics returns the process metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Config loads the current settings.
func (a *App) Config() (domain.Settings, error) {
	return a.settings.Get()
}

// Library returns a library service. It needs storage but no AI provider.
func (a *App) Library(_ context.Context) (*services.LibraryService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	backends, err := a.openBackends(cfg)
	if err != nil {
		return nil, err
	}
	return services.NewLibraryService(backends.Manifest, backends.VectorStore), nil
}

// Ingestion returns the ingestion service, initialising providers on first call.
func (a *App) Ingestion(ctx context.Context) (*services.IngestionService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ingestion != nil {
		return a.ingestion, nil
	}

	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	backends, err := a.openBackends(cfg)
	if err != nil {
		return nil, err
	}
	providers, err := a.initAI(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	pipeline, err := postprocessors.NewDefaultRegistry().BuildPipeline(cfg.Pipeline, postprocessors.Dependencies{
		Embedder: providers.EmbeddingService,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	logger.Debug("Pipeline: %v", pipeline.Names())

	a.ingestion = services.NewIngestionService(pipeline, providers.EmbeddingService,
		backends.VectorStore, backends.Manifest,
		services.WithUploadBatchSize(cfg.Upload.BatchSize),
		services.WithIngestionMetrics(a.metrics))
	return a.ingestion, nil
}

// Retrieval returns the retrieval service, initialising providers on first call.
// Without a reachable LLM, rerank and synthesis use no-op implementations.
func (a *App) Retrieval(ctx context.Context) (*services.RetrievalService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.retrieval != nil {
		return a.retrieval, nil
	}

	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	backends, err := a.openBackends(cfg)
	if err != nil {
		return nil, err
	}
	providers, err := a.initAI(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	opts := []services.RetrievalOption{
		services.WithStageTimeouts(cfg.Retrieval.RerankTimeout, cfg.Retrieval.SynthesisTimeout),
		services.WithRetrievalMetrics(a.metrics),
	}
	if providers.LLMService != nil {
		opts = append(opts,
			services.WithReranker(services.NewLLMReranker(providers.LLMService, a.prompts)),
			services.WithSynthesizer(services.NewLLMSynthesizer(providers.LLMService, a.prompts)))
	}

	a.retrieval = services.NewRetrievalService(providers.EmbeddingService, backends.VectorStore, opts...)
	return a.retrieval, nil
}

// Close releases providers and storage.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ai != nil {
		a.ai.Close()
		a.ai = nil
	}
	var err error
	if a.backends != nil {
		err = a.backends.Close()
		a.backends = nil
	}
	a.ingestion, a.retrieval = nil, nil
	return err
}

func (a *App) openBackends(cfg domain.Settings) (*storage.Backends, error) {
	if a.backends != nil {
		return a.backends, nil
	}
	backends, err := storage.Open(cfg.VectorStore, filepath.Join(a.configDir, "data"))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.VectorStore.Provider, err)
	}
	a.backends = backends
	return backends, nil
}

func (a *App) initAI(ctx context.Context, cfg *domain.Settings) (*ai.InitResult, error) {
	if a.ai != nil {
		return a.ai, nil
	}
	result, err := ai.Initialise(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.ai = result
	return result, nil
}

// BookOptions override file metadata and chunking for one ingestion.
type BookOptions struct {
	Collection string
	Title      string
	Author     string
	Language   string
	Domain     string
	Flat       bool
	Force      bool
}

// LoadBook reads a book file or file:// URI and builds its ingest request.
// The chunking threshold follows the book's domain.
func (a *App) LoadBook(ctx context.Context, path string, opts BookOptions) (domain.IngestRequest, error) {
	cfg, err := a.Config()
	if err != nil {
		return domain.IngestRequest{}, err
	}

	overrides := map[string]any{}
	for key, value := range map[string]string{
		bookmeta.KeyTitle:    opts.Title,
		bookmeta.KeyAuthor:   opts.Author,
		bookmeta.KeyLanguage: opts.Language,
		bookmeta.KeyDomain:   opts.Domain,
	} {
		if value != "" {
			overrides[key] = value
		}
	}

	book, err := a.loader.Load(ctx, filesystem.ResolvePath(path), overrides)
	if err != nil {
		return domain.IngestRequest{}, err
	}

	params := cfg.Chunking.Params(book.Document.Book.Domain)
	if opts.Flat {
		params.Hierarchical = false
	}

	collection := opts.Collection
	if collection == "" {
		collection = cfg.Retrieval.Collection
	}

	return domain.IngestRequest{
		Collection: collection,
		Book:       book.Document.Book,
		Chapters:   book.Chapters,
		Params:     params,
		Force:      opts.Force,
	}, nil
}
