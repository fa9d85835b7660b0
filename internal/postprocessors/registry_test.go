package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// registryMockProcessor is a simple mock for testing registry functionality.
type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(_ context.Context, _ *domain.ChapterInput, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return chunks, nil
}

// stubEmbedder returns a constant vector per text.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) Dimensions() int              { return 2 }
func (stubEmbedder) ModelName() string            { return "stub" }
func (stubEmbedder) Ping(_ context.Context) error { return nil }
func (stubEmbedder) Close() error                 { return nil }

func mockBuilder(name string) BuilderFunc {
	return func(_ Dependencies, _ map[string]any) (driven.PostProcessor, error) {
		return &registryMockProcessor{name: name}, nil
	}
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if len(r.builders) != 0 {
		t.Errorf("expected empty builders, got %d", len(r.builders))
	}
}

func TestRegistry_Build_Success(t *testing.T) {
	r := NewRegistry()

	r.Register("test", func(_ Dependencies, cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	})

	proc, err := r.Build("test", Dependencies{}, map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if proc.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", proc.Name())
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build("unknown", Dependencies{}, nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRegistry_HasAndNames(t *testing.T) {
	r := NewRegistry()

	if r.Has("alpha") {
		t.Error("expected Has to return false for nonexistent processor")
	}

	r.Register("beta", mockBuilder("beta"))
	r.Register("alpha", mockBuilder("alpha"))

	if !r.Has("alpha") {
		t.Error("expected Has to return true for registered processor")
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("expected sorted names [alpha beta], got %v", names)
	}
}

func TestRegistry_BuildPipeline(t *testing.T) {
	r := NewDefaultRegistry()

	p, err := r.BuildPipeline(domain.DefaultPipelineConfig(), Dependencies{Embedder: stubEmbedder{}})
	if err != nil {
		t.Fatalf("BuildPipeline failed: %v", err)
	}

	names := p.Names()
	if len(names) != 2 || names[0] != "chunker" || names[1] != "embedder" {
		t.Errorf("expected [chunker embedder], got %v", names)
	}
}

func TestRegistry_BuildPipeline_Errors(t *testing.T) {
	r := NewDefaultRegistry()

	if _, err := r.BuildPipeline(domain.PipelineConfig{}, Dependencies{Embedder: stubEmbedder{}}); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for empty pipeline, got %v", err)
	}

	cfg := domain.PipelineConfig{Processors: []string{"chunker", "missing"}}
	if _, err := r.BuildPipeline(cfg, Dependencies{Embedder: stubEmbedder{}}); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for unknown processor, got %v", err)
	}

	if _, err := r.BuildPipeline(domain.DefaultPipelineConfig(), Dependencies{}); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected embedding unavailable, got %v", err)
	}
}

func TestDefaultPipeline_ChunksAndEmbeds(t *testing.T) {
	p, err := NewDefaultRegistry().BuildPipeline(domain.DefaultPipelineConfig(), Dependencies{Embedder: stubEmbedder{}})
	if err != nil {
		t.Fatalf("BuildPipeline failed: %v", err)
	}

	input := testInput()
	input.Chapter.Text = "First sentence here. Second sentence here."

	chunks, err := p.Process(context.Background(), input)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// One parent plus one child: identical vectors never split.
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Embedding) != 2 {
			t.Errorf("chunk %s (%s) has %d dimensions", c.ID, c.Level, len(c.Embedding))
		}
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		key      string
		expected int
	}{
		{"int value", map[string]any{"size": 100}, "size", 100},
		{"int64 value", map[string]any{"size": int64(200)}, "size", 200},
		{"float64 value", map[string]any{"size": float64(300)}, "size", 300},
		{"string value", map[string]any{"size": "400"}, "size", 0},
		{"missing key", map[string]any{"other": 100}, "size", 0},
		{"nil config", nil, "size", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getIntFromConfig(tt.cfg, tt.key)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}
