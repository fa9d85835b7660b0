package openai

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

func TestNewLLMService_RequiresKeyForDefaultEndpoint(t *testing.T) {
	svc, err := NewLLMService(LLMConfig{})

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Nil(t, svc)
}

func TestNewLLMService_CompatibleServerWithoutKey(t *testing.T) {
	svc, err := NewLLMService(LLMConfig{BaseURL: "http://localhost:8080/v1"})

	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		assert.EqualValues(t, 50, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[2, 1]"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	require.NoError(t, err)

	out, err := svc.Generate(context.Background(), "rank these", driven.GenerateOptions{MaxTokens: 50})

	require.NoError(t, err)
	assert.Equal(t, "[2, 1]", out)
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "x", driven.GenerateOptions{})

	assert.Error(t, err)
}

func TestGenerate_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   error
	}{
		{"unauthorised", http.StatusUnauthorized, domain.ErrConfiguration},
		{"rate limited", http.StatusTooManyRequests, domain.ErrConnectivity},
		{"server error", http.StatusInternalServerError, domain.ErrConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			}))
			defer srv.Close()

			svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
			require.NoError(t, err)

			_, err = svc.Generate(context.Background(), "x", driven.GenerateOptions{})

			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
