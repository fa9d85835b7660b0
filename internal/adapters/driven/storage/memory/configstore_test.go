package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_Set_Update(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("retrieval.collection", "original"))
	require.NoError(t, store.Set("retrieval.collection", "updated"))

	val, ok := store.Get("retrieval.collection")
	assert.True(t, ok)
	assert.Equal(t, "updated", val)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("embedding.dimensions", 768))
	require.NoError(t, store.Set("retrieval.limit", float64(8)))
	require.NoError(t, store.Set("chunking.hierarchical", true))
	require.NoError(t, store.Set("embedding.requests_per_second", 2.5))

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 768, store.GetInt("embedding.dimensions"))
	assert.Equal(t, 8, store.GetInt("retrieval.limit"))
	assert.True(t, store.GetBool("chunking.hierarchical"))
	assert.InDelta(t, 2.5, store.GetFloat("embedding.requests_per_second"), 1e-9)
	assert.InDelta(t, 768, store.GetFloat("embedding.dimensions"), 1e-9)

	// Wrong types read as zero values.
	assert.Empty(t, store.GetString("embedding.dimensions"))
	assert.Zero(t, store.GetInt("embedding.provider"))
	assert.False(t, store.GetBool("embedding.provider"))
	assert.Zero(t, store.GetFloat("embedding.provider"))
}

func TestConfigStore_GetDuration(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("a", "1m30s"))
	require.NoError(t, store.Set("b", 45))
	require.NoError(t, store.Set("c", 2*time.Second))
	require.NoError(t, store.Set("d", "soon"))

	assert.Equal(t, 90*time.Second, store.GetDuration("a"))
	assert.Equal(t, 45*time.Second, store.GetDuration("b"))
	assert.Equal(t, 2*time.Second, store.GetDuration("c"))
	assert.Zero(t, store.GetDuration("d"))
	assert.Zero(t, store.GetDuration("missing"))
}

func TestConfigStore_KeysWithPrefix(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("chunking.thresholds.law", 0.7))
	require.NoError(t, store.Set("chunking.thresholds.philosophy", 0.5))
	require.NoError(t, store.Set("chunking.thresholdsx", 1))
	require.NoError(t, store.Set("chunking.min_chunk_size", 50))

	assert.Equal(t,
		[]string{"chunking.thresholds.law", "chunking.thresholds.philosophy"},
		store.KeysWithPrefix("chunking.thresholds"))
	assert.Empty(t, store.KeysWithPrefix("upload"))
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("pipeline.processors", []string{"chunker", "embedder"}))
	require.NoError(t, store.Set("pipeline.mixed", []any{"chunker", 1, "embedder"}))

	assert.Equal(t, []string{"chunker", "embedder"}, store.GetStringSlice("pipeline.processors"))
	assert.Equal(t, []string{"chunker", "embedder"}, store.GetStringSlice("pipeline.mixed"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_NoOpPersistence(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("retrieval.limit", 5)
		}()
		go func() {
			defer wg.Done()
			_ = store.KeysWithPrefix("retrieval")
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, store.GetInt("retrieval.limit"))
}
