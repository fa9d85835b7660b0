package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func sampleResponse() *domain.RetrievalResponse {
	return &domain.RetrievalResponse{
		Query:       "why do cats purr",
		Collection:  "books",
		ContextMode: domain.ContextContextual,
		Results: []domain.RetrievalResult{{
			Chunk: domain.Chunk{
				ID:          "c1",
				Level:       domain.LevelChild,
				Text:        "Cats purr when content.",
				ParentID:    "p1",
				SectionName: "Chapter 1",
				Book:        domain.BookMetadata{Title: "On Cats", Author: "A. Writer"},
			},
			Score: 0.87,
		}},
		Parents: map[string]domain.ParentContext{
			"p1": {ID: "p1", SectionName: "Chapter 1", Text: "Cats purr when content. They also knead."},
		},
		Accounting: domain.Accounting{Fetched: 20, BelowThreshold: 18, FilteredOut: 1, Returned: 1},
	}
}

func TestRetrieveCmd_RequiresExactlyOneArg(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "retrieve")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRetrieveCmd_HasLimitFlag(t *testing.T) {
	flag := retrieveCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestRetrieveCmd_PrintsResults(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.response = sampleResponse()

	out, err := execute(t, "retrieve", "why do cats purr")

	require.NoError(t, err)
	assert.Equal(t, "why do cats purr", ts.retrieval.lastQuery)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] On Cats (0.87)")
	assert.Contains(t, out, "Cats purr when content.")
	assert.Contains(t, out, "Context (Chapter 1)")
	assert.Contains(t, out, "20 candidates: 18 below threshold, 1 filtered, 0 over limit, 1 returned")
}

func TestRetrieveCmd_NoResults(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "retrieve", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestRetrieveCmd_UsesConfiguredDefaults(t *testing.T) {
	ts := setupTestServices(t)
	require.NoError(t, ts.config.Set("retrieval.collection", "library"))
	require.NoError(t, ts.config.Set("retrieval.limit", 9))
	require.NoError(t, ts.config.Set("retrieval.context_mode", "precise"))

	_, err := execute(t, "retrieve", "q")

	require.NoError(t, err)
	params := ts.retrieval.lastParams
	assert.Equal(t, "library", params.Collection)
	assert.Equal(t, 9, params.Limit)
	assert.Equal(t, domain.ContextPrecise, params.ContextMode)
	assert.False(t, params.Rerank)
	assert.False(t, params.Synthesize)
}

func TestRetrieveCmd_FlagsOverrideDefaults(t *testing.T) {
	ts := setupTestServices(t)
	require.NoError(t, ts.config.Set("retrieval.limit", 9))

	_, err := execute(t, "retrieve", "--limit", "3", "--threshold", "0.5", "--mode", "Comprehensive",
		"--domain", "philosophy", "--language", "en", "--book", "On Cats", "--rerank", "--pattern", "summary", "q")

	require.NoError(t, err)
	params := ts.retrieval.lastParams
	assert.Equal(t, 3, params.Limit)
	assert.InDelta(t, 0.5, params.SimilarityThreshold, 1e-9)
	assert.Equal(t, domain.ContextComprehensive, params.ContextMode)
	assert.Equal(t, domain.RetrievalFilters{Domain: "philosophy", Language: "en", BookTitle: "On Cats"}, params.Filters)
	assert.True(t, params.Rerank)
	assert.True(t, params.Synthesize, "a pattern implies synthesis")
	assert.Equal(t, "summary", params.ResponsePattern)
}

func TestRetrieveCmd_InvalidMode(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "retrieve", "--mode", "everything", "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "everything"`)
}

func TestRetrieveCmd_ReportsDegradedFeatures(t *testing.T) {
	ts := setupTestServices(t)
	resp := sampleResponse()
	resp.DegradedRerank = true
	resp.RerankError = "rerank timed out"
	synthErr := "LLM service unavailable"
	resp.SynthesisError = &synthErr
	ts.retrieval.response = resp

	out, err := execute(t, "retrieve", "--rerank", "--synthesize", "q")

	require.NoError(t, err)
	assert.Contains(t, out, "rerank skipped: rerank timed out")
	assert.Contains(t, out, "synthesis unavailable: LLM service unavailable")
	assert.Contains(t, out, "Cats purr when content.")
}

func TestRetrieveCmd_PrintsSynthesis(t *testing.T) {
	ts := setupTestServices(t)
	resp := sampleResponse()
	resp.Synthesis = "Cats purr to signal contentment."
	ts.retrieval.response = resp

	out, err := execute(t, "retrieve", "--synthesize", "q")

	require.NoError(t, err)
	assert.Contains(t, out, "Answer")
	assert.Contains(t, out, "Cats purr to signal contentment.")
}

func TestRetrieveCmd_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.response = sampleResponse()

	out, err := execute(t, "retrieve", "--json", "q")

	require.NoError(t, err)
	assert.Contains(t, out, `"accounting"`)
	assert.Contains(t, out, `"synthesis_error": null`)
}

func TestRetrieveCmd_ServiceError(t *testing.T) {
	ts := setupTestServices(t)
	ts.retrieval.err = domain.ErrUnknownCollection

	_, err := execute(t, "retrieve", "q")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "retrieve failed")
}
