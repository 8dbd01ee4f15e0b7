package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"intellidocs/internal/ai"
	"intellidocs/internal/app"
	"intellidocs/internal/config"
	"intellidocs/internal/index"
	"intellidocs/internal/model"
	redisClient "intellidocs/internal/platform/redis"
)

type App struct {
	Config   *config.Config
	Redis    *redis.Client // nil unless the redis index backend is enabled
	Sessions *app.SessionManager
	RAG      *app.RAGService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	embedder, generator, err := ai.NewProvider(ctx, ai.ProviderConfig{
		Provider:       cfg.LLM.Provider,
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		BatchSize:      cfg.Pipeline.EmbedBatchSize,
		Retry: ai.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Timeout:     cfg.RequestTimeout(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init llm provider failed: %w", err)
	}

	var redisCli *redis.Client
	buildIndex := memoryIndexBuilder()
	if cfg.Index.Backend == config.IndexRedis {
		redisCli, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		buildIndex = redisIndexBuilder(redisCli)
	}

	sessions := app.NewSessionManager()
	rag := app.NewRAGService(
		embedder,
		generator,
		app.PDFExtractor{},
		buildIndex,
		sessions,
		app.Options{
			ChunkSize:    cfg.Pipeline.ChunkSize,
			ChunkOverlap: cfg.Pipeline.ChunkOverlap,
			TopK:         cfg.Pipeline.TopK,
			MinScore:     cfg.Pipeline.MinScore,
			MaxFileSize:  cfg.MaxFileSizeBytes(),
			HistoryTurns: cfg.Pipeline.HistoryTurns,
		},
	)

	return &App{
		Config:    cfg,
		Redis:     redisCli,
		Sessions:  sessions,
		RAG:       rag,
		StartedAt: time.Now(),
	}, nil
}

func memoryIndexBuilder() app.IndexBuilder {
	return func(ctx context.Context, sessionID string, chunks []model.Chunk, vectors [][]float32) (index.Index, error) {
		return index.Build(chunks, vectors)
	}
}

func redisIndexBuilder(cli *redis.Client) app.IndexBuilder {
	return func(ctx context.Context, sessionID string, chunks []model.Chunk, vectors [][]float32) (index.Index, error) {
		return index.BuildRedis(ctx, cli, sessionID, chunks, vectors)
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
