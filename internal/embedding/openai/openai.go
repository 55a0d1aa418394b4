package openai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"

	"voxrag/internal/openaicompat"
)

// Client is an OpenAI-compatible embeddings client. It works against OpenAI
// and against Ollama or vLLM through their /v1 endpoints.
type Client struct {
	client     *openai.Client
	model      string
	dimension  atomic.Int64
	maxRetries int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// Dimension, when set, is reported before the first call and enforced afterwards.
	Dimension int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	oc, err := openaicompat.NewClient(openaicompat.Config{BaseURL: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	c := &Client{client: oc, model: cfg.Model, maxRetries: 5}
	c.dimension.Store(int64(cfg.Dimension))
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the vector size. It is learned from the first response
// when not configured.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text, retrying rate limits
// and server errors with backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			if !openaicompat.Retryable(err) || attempt == c.maxRetries {
				break
			}
			if err := openaicompat.Sleep(ctx, openaicompat.RetryDelay(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, errors.New("no embedding returned")
		}
		v := resp.Data[0].Embedding
		if !c.dimension.CompareAndSwap(0, int64(len(v))) && int(c.dimension.Load()) != len(v) {
			return nil, fmt.Errorf("embedding dimension %d, expected %d", len(v), c.dimension.Load())
		}
		return v, nil
	}
	return nil, fmt.Errorf("openai embeddings: %w", lastErr)
}
