package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 2, cfg.RAG.Overfetch)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 0.3, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.Ingestion.RSSFeeds)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE", "10")
	t.Setenv("CHUNK_OVERLAP", "2")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("VECTOR_SIMILARITY_THRESHOLD", "0.1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RSS_FEEDS", "https://a.example/rss, ,https://b.example/feed")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.RAG.ChunkSize)
	assert.Equal(t, 2, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5*time.Second, cfg.RAG.GenerationTimeout)
	assert.Equal(t, 0.1, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, []string{"https://a.example/rss", "https://b.example/feed"}, cfg.Ingestion.RSSFeeds)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE", "many")

	_, err := Load()
	assert.ErrorContains(t, err, "CHUNK_SIZE")
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"overlap too large", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }, "CHUNK_OVERLAP"},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }, "EMBEDDING_DIM"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "faiss" }, "EMBEDDING_PROVIDER"},
		{"unknown enricher", func(c *Config) { c.Ingestion.Enricher = "spacy" }, "ENRICHER"},
		{"unknown query guard", func(c *Config) { c.RAG.QueryGuard = "strict" }, "QUERY_GUARD"},
		{"no overfetch", func(c *Config) { c.RAG.Overfetch = 0 }, "RAG_OVERFETCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
