package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	IndexMemory = "memory"
	IndexRedis  = "redis"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	LLM      LLMConfig      `toml:"llm"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Retry    RetryConfig    `toml:"retry"`
	Index    IndexConfig    `toml:"index"`
	Redis    RedisConfig    `toml:"redis"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

// LLMConfig selects the embedding/generation provider and its models.
type LLMConfig struct {
	Provider       string  `toml:"provider"` // "openai" or "gemini"
	BaseURL        string  `toml:"base_url"` // openai-compatible only
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	EmbeddingModel string  `toml:"embedding_model"`
	Temperature    float64 `toml:"temperature"`
}

// PipelineConfig tunes chunking, retrieval and ingestion limits.
type PipelineConfig struct {
	ChunkSize      int     `toml:"chunk_size"`
	ChunkOverlap   int     `toml:"chunk_overlap"`
	TopK           int     `toml:"top_k"`
	MinScore       float64 `toml:"min_score"`
	EmbedBatchSize int     `toml:"embed_batch_size"`
	MaxFileSizeMB  int     `toml:"max_file_size_mb"`
	HistoryTurns   int     `toml:"history_turns"`
}

// RetryConfig is shared by the embedding and generation clients.
type RetryConfig struct {
	MaxAttempts    int `toml:"max_attempts"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

type IndexConfig struct {
	Backend string `toml:"backend"` // "memory" or "redis"
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects bad settings at construction instead of deep inside a
// pipeline call.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm api_key is required (set LLM_API_KEY)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("config: llm model is required")
	}
	if c.LLM.EmbeddingModel == "" {
		return fmt.Errorf("config: llm embedding_model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config: temperature %v out of range [0,2]", c.LLM.Temperature)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive")
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("config: chunk_overlap %d must be in [0, chunk_size)", c.Pipeline.ChunkOverlap)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive")
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		return fmt.Errorf("config: embed_batch_size must be positive")
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		return fmt.Errorf("config: max_file_size_mb must be positive")
	}
	if c.Pipeline.HistoryTurns < 0 {
		return fmt.Errorf("config: history_turns must not be negative")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry max_attempts must be positive")
	}
	if c.Retry.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: retry timeout_seconds must be positive")
	}
	switch c.Index.Backend {
	case IndexMemory:
	case IndexRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis addr is required for the redis index backend")
		}
	default:
		return fmt.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Retry.TimeoutSeconds) * time.Second
}

func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Pipeline.MaxFileSizeMB) << 20
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "intellidocs",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		LLM: LLMConfig{
			Provider:       ProviderGemini,
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gemini-2.0-flash-exp",
			EmbeddingModel: "embedding-001",
			Temperature:    0.3,
		},
		Pipeline: PipelineConfig{
			ChunkSize:      10000,
			ChunkOverlap:   1000,
			TopK:           5,
			MinScore:       0,
			EmbedBatchSize: 16,
			MaxFileSizeMB:  50,
			HistoryTurns:   6,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			TimeoutSeconds: 30,
		},
		Index: IndexConfig{
			Backend: IndexMemory,
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			Password: "",
			DB:       0,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	// The original deployment used GOOGLE_API_KEY; honor it as a fallback.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	cfg.LLM.Model = getEnv("MODEL_NAME", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.Temperature = getEnvAsFloat("TEMPERATURE", cfg.LLM.Temperature)

	cfg.Pipeline.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.Pipeline.ChunkSize)
	cfg.Pipeline.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.Pipeline.ChunkOverlap)
	cfg.Pipeline.TopK = getEnvAsInt("RETRIEVAL_TOP_K", cfg.Pipeline.TopK)
	cfg.Pipeline.MinScore = getEnvAsFloat("RETRIEVAL_MIN_SCORE", cfg.Pipeline.MinScore)
	cfg.Pipeline.EmbedBatchSize = getEnvAsInt("EMBED_BATCH_SIZE", cfg.Pipeline.EmbedBatchSize)
	cfg.Pipeline.MaxFileSizeMB = getEnvAsInt("MAX_FILE_SIZE_MB", cfg.Pipeline.MaxFileSizeMB)
	cfg.Pipeline.HistoryTurns = getEnvAsInt("HISTORY_TURNS", cfg.Pipeline.HistoryTurns)

	cfg.Retry.MaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.TimeoutSeconds = getEnvAsInt("REQUEST_TIMEOUT_SECONDS", cfg.Retry.TimeoutSeconds)

	cfg.Index.Backend = getEnv("INDEX_BACKEND", cfg.Index.Backend)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
