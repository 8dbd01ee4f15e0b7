package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OpenAICompatibleClient talks to any /embeddings + /chat/completions API
// (OpenAI, DashScope, Ollama's compatible mode, ...).
type OpenAICompatibleClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	temperature    float64
	batchSize      int
	retry          RetryPolicy
}

func NewOpenAICompatibleClient(cfg ProviderConfig) *OpenAICompatibleClient {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 16
	}
	return &OpenAICompatibleClient{
		httpClient:     &http.Client{}, // per-attempt timeout comes from the retry policy
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		batchSize:      batch,
		retry:          cfg.Retry,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedBatch embeds texts in batches of the configured size rather than one
// request per chunk, preserving input order.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *OpenAICompatibleClient) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		raw, err := c.postJSON(ctx, "/embeddings", embeddingRequest{
			Model: c.embeddingModel,
			Input: batch,
		})
		if err != nil {
			return err
		}
		var parsed embeddingResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("parse embedding json failed: %w", err)
		}
		if len(parsed.Data) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(parsed.Data), len(batch))
		}
		vectors = make([][]float32, len(batch))
		for _, d := range parsed.Data {
			if d.Index < 0 || d.Index >= len(batch) || len(d.Embedding) == 0 {
				return fmt.Errorf("malformed embedding at index %d", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		return nil
	})
	return vectors, err
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAICompatibleClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	messages := make([]ChatMessage, 0, len(prompt.Messages)+1)
	if prompt.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: prompt.System})
	}
	messages = append(messages, prompt.Messages...)

	var answer string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		raw, err := c.postJSON(ctx, "/chat/completions", chatRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temperature,
		})
		if err != nil {
			return err
		}
		var parsed chatResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("parse llm json failed: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("empty llm choices")
		}
		answer = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationService, err)
	}
	return answer, nil
}

// postJSON issues one request and classifies the failure mode: rate limits,
// 5xx and transport errors are transient, anything else is permanent.
func (c *OpenAICompatibleClient) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(fmt.Errorf("read response failed: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		statusErr := fmt.Errorf("response status %d: %s", resp.StatusCode, truncate(raw))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
				return nil, TransientAfter(statusErr, time.Duration(secs)*time.Second)
			}
		}
		return nil, Transient(statusErr)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("response status %d: %s", resp.StatusCode, truncate(raw))
	}
	return raw, nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
