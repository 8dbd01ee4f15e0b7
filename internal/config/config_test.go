package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 1000, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, IndexMemory, cfg.Index.Backend)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, int64(50)<<20, cfg.MaxFileSizeBytes())
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"missing embedding model", func(c *Config) { c.LLM.EmbeddingModel = "" }},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 2.5 }},
		{"negative temperature", func(c *Config) { c.LLM.Temperature = -0.1 }},
		{"zero chunk size", func(c *Config) { c.Pipeline.ChunkSize = 0 }},
		{"overlap equals chunk size", func(c *Config) { c.Pipeline.ChunkOverlap = c.Pipeline.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Pipeline.ChunkOverlap = -1 }},
		{"zero top_k", func(c *Config) { c.Pipeline.TopK = 0 }},
		{"zero batch size", func(c *Config) { c.Pipeline.EmbedBatchSize = 0 }},
		{"zero max file size", func(c *Config) { c.Pipeline.MaxFileSizeMB = 0 }},
		{"negative history turns", func(c *Config) { c.Pipeline.HistoryTurns = -1 }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"zero timeout", func(c *Config) { c.Retry.TimeoutSeconds = 0 }},
		{"unknown index backend", func(c *Config) { c.Index.Backend = "faiss" }},
		{"redis backend without addr", func(c *Config) {
			c.Index.Backend = IndexRedis
			c.Redis.Addr = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9999

[llm]
provider = "openai"
api_key = "from-file"
model = "gpt-4o-mini"
embedding_model = "text-embedding-3-small"

[pipeline]
chunk_size = 500
chunk_overlap = 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7777")
	t.Setenv("RETRIEVAL_TOP_K", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, 500, cfg.Pipeline.ChunkSize)
	// Environment wins over the file.
	assert.Equal(t, 7777, cfg.App.Port)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
	// Untouched values keep their defaults.
	assert.Equal(t, 16, cfg.Pipeline.EmbedBatchSize)
}

func TestLoad_GoogleAPIKeyFallback(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.LLM.APIKey)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("LLM_API_KEY", "key")
	t.Setenv("CHUNK_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
}
