package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// chatRequest is the subset of the /api/chat body the tests inspect.
type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Options struct {
		NumPredict int      `json:"num_predict"`
		Stop       []string `json:"stop"`
	} `json:"options"`
}

func newService(t *testing.T, cfg LLMConfig) *LLMService {
	t.Helper()
	svc, err := NewLLMService(cfg)
	require.NoError(t, err)
	return svc
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "q", req.Messages[0].Content)
		assert.Equal(t, 64, req.Options.NumPredict)
		assert.Equal(t, []string{"END"}, req.Options.Stop)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"answer"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	svc := newService(t, LLMConfig{BaseURL: srv.URL})

	out, err := svc.Generate(context.Background(), "q", driven.GenerateOptions{MaxTokens: 64, StopWords: []string{"END"}})

	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, DefaultModel, svc.ModelName())
}

func TestGenerate_ModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model \"llama3.2\" not found, try pulling it first"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newService(t, LLMConfig{BaseURL: srv.URL}).Generate(context.Background(), "q", driven.GenerateOptions{})

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newService(t, LLMConfig{BaseURL: url}).Generate(context.Background(), "q", driven.GenerateOptions{})

	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newService(t, LLMConfig{BaseURL: url}).Ping(context.Background())

	assert.ErrorIs(t, err, domain.ErrConnectivity)
}
