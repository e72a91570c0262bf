package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-large", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, "gpt-5-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, "gpt-5-nano", cfg.OpenAI.JudgeModel)
	assert.Equal(t, 400, cfg.Chunker.MaxTokens)
	assert.Equal(t, 60, cfg.Chunker.OverlapTokens)
	assert.Equal(t, "cl100k_base", cfg.Chunker.Encoding)
	assert.Equal(t, 1300, cfg.Audio.MaxSliceSecs)
	assert.Equal(t, 10, cfg.Audio.OverlapSecs)
	assert.Equal(t, ":memory:", cfg.VectorStore.Location)
	assert.True(t, cfg.VectorStore.InMemory())
	assert.Equal(t, "ragbot-collection", cfg.VectorStore.Collection)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Retrieval.MaxToolRounds)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_tokens: 300
vector_store:
  url: http://localhost:6333
  collection: lectures
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Chunker.MaxTokens)
	assert.Equal(t, 60, cfg.Chunker.OverlapTokens)
	assert.Equal(t, "lectures", cfg.VectorStore.Collection)
	assert.False(t, cfg.VectorStore.InMemory())
}

func TestLoad_RejectsBadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_tokens: 100
  overlap_tokens: 100
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap_tokens")
}

func TestLoad_RejectsBadAudioOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audio:
  max_slice_secs: 30
  overlap_secs: 45
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap_secs")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	cfg.VectorStore.URL = "http://qdrant:6333"
	cfg.VectorStore.Location = ""

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://qdrant:6333", loaded.VectorStore.URL)
}

func TestRetryConfigPolicy(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	p := cfg.Retries.Embedding.Policy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.InitialInterval)
	assert.Equal(t, 10*time.Second, p.MaxInterval)
}
