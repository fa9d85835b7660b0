package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[embedding]
provider = "openai"
model = "text-embedding-3-large"
dimensions = 1024
timeout = "45s"
requests_per_second = 2.5

[chunking]
min_chunk_size = 80
hierarchical = false

[chunking.thresholds]
philosophy = 0.5
law = 0.7

[retrieval]
synthesis_timeout = 90
`

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sercha-rag"), dir)
}

func TestConfigStore_FlattensNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "openai", store.GetString("embedding.provider"))
	assert.Equal(t, 1024, store.GetInt("embedding.dimensions"))
	assert.False(t, store.GetBool("chunking.hierarchical"))
	assert.InDelta(t, 0.5, store.GetFloat("chunking.thresholds.philosophy"), 1e-9)
}

func TestConfigStore_GetFloat(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, store.GetFloat("embedding.requests_per_second"), 1e-9)
	// Integers are converted.
	assert.InDelta(t, 80, store.GetFloat("chunking.min_chunk_size"), 1e-9)
	assert.Zero(t, store.GetFloat("embedding.provider"))
	assert.Zero(t, store.GetFloat("missing"))
}

func TestConfigStore_GetDuration(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, store.GetDuration("embedding.timeout"))
	assert.Equal(t, 90*time.Second, store.GetDuration("retrieval.synthesis_timeout"))
	assert.Zero(t, store.GetDuration("embedding.model"))
	assert.Zero(t, store.GetDuration("missing"))
}

func TestConfigStore_KeysWithPrefix(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, sampleConfig)
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	keys := store.KeysWithPrefix("chunking.thresholds")

	assert.Equal(t, []string{"chunking.thresholds.law", "chunking.thresholds.philosophy"}, keys)
	assert.Empty(t, store.KeysWithPrefix("upload"))
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "[pipeline]\nprocessors = [\"chunker\", \"embedder\"]\n")
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"chunker", "embedder"}, store.GetStringSlice("pipeline.processors"))
	assert.Nil(t, store.GetStringSlice("pipeline.missing"))
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	val, ok := store.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Empty(t, store.GetString("nonexistent"))
	assert.Zero(t, store.GetInt("nonexistent"))
	assert.False(t, store.GetBool("nonexistent"))
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	// Create store and set values
	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store1.Set("retrieval.collection", "library"))
	require.NoError(t, store1.Set("retrieval.limit", 8))
	require.NoError(t, store1.Set("chunking.hierarchical", true))

	// Create new store instance - should load from file
	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "library", store2.GetString("retrieval.collection"))
	assert.Equal(t, 8, store2.GetInt("retrieval.limit"))
	assert.True(t, store2.GetBool("chunking.hierarchical"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "")

	// Store should handle empty file gracefully
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("retrieval.limit", 5)
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("retrieval.limit")
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, store.GetInt("retrieval.limit"))
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	// On Unix systems, a path under /dev/null cannot be created
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "this is not valid TOML {{{[[")

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}
