// Package llm renders prompts and calls an OpenAI-compatible chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"voxrag/internal/domain"
	"voxrag/internal/openaicompat"
)

// Config configures the chat generator.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	Timeout     time.Duration
	// Stream, when non-nil, receives tokens as they arrive.
	Stream io.Writer
}

// Client generates answers with a chat completion model.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	stream      io.Writer
}

// NewClient creates a generator. Ollama is reachable through its /v1 endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: llm model not set", domain.ErrConfiguration)
	}
	oc, err := openaicompat.NewClient(openaicompat.Config{BaseURL: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Client{client: oc, model: cfg.Model, temperature: cfg.Temperature, stream: cfg.Stream}, nil
}

// Generate sends history followed by prompt as the user turn.
func (c *Client) Generate(ctx context.Context, prompt string, history []domain.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	}
	if c.stream != nil {
		return c.generateStream(ctx, req)
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) generateStream(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), fmt.Errorf("llm: stream: %w", err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			sb.WriteString(choice.Delta.Content)
			_, _ = io.WriteString(c.stream, choice.Delta.Content)
		}
	}
	return sb.String(), nil
}
