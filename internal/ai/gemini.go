package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiClient serves both embedding and generation through the Gemini API.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	temperature    float64
	batchSize      int
	retry          RetryPolicy
}

func NewGeminiClient(ctx context.Context, cfg ProviderConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 16
	}
	return &GeminiClient{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		batchSize:      batch,
		retry:          cfg.Retry,
	}, nil
}

func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}

		var resp *genai.EmbedContentResponse
		err := c.retry.Do(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
			return classifyGeminiErr(callErr)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: embedding count mismatch: got %d, want %d",
				ErrEmbeddingService, len(resp.Embeddings), len(batch))
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	contents := make([]*genai.Content, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		contents = append(contents, genai.NewContentFromText(m.Content, geminiRole(m.Role)))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.temperature)),
	}
	if prompt.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	var answer string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp, callErr := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
		if callErr != nil {
			return classifyGeminiErr(callErr)
		}
		answer = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationService, err)
	}
	return answer, nil
}

// geminiRole maps the provider-neutral message role onto the API's role type.
func geminiRole(role string) genai.Role {
	if role == "assistant" {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// classifyGeminiErr maps API errors onto the shared retry policy's
// transient/permanent split.
func classifyGeminiErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return Transient(err)
		}
		return err
	}
	// Transport-level failures have no status; assume transient.
	return Transient(err)
}
