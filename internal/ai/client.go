// Package ai provides the embedding and text-generation clients the
// pipeline depends on, behind small provider-neutral interfaces.
package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingService is returned once the retry budget for an embedding
	// call is exhausted, or the upstream rejects the request outright.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrGenerationService is the generation-side counterpart.
	ErrGenerationService = errors.New("generation service error")
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is a provider-neutral generation request: a system instruction plus
// an ordered message list ending with the current user turn.
type Prompt struct {
	System   string
	Messages []ChatMessage
}

// Embedder maps texts to fixed-length vectors, one per input,
// order-preserving. Implementations batch upstream calls themselves.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a prompt in a single model call.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// ProviderConfig selects and parameterises a concrete provider.
type ProviderConfig struct {
	Provider       string // "openai" or "gemini"
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	BatchSize      int
	Retry          RetryPolicy
}

// NewProvider builds the embedder and generator for the configured provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Embedder, Generator, error) {
	switch cfg.Provider {
	case "openai":
		c := NewOpenAICompatibleClient(cfg)
		return c, c, nil
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
