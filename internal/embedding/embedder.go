// Package embedding constructs the configured text embedder.
package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"voxrag/internal/config"
	"voxrag/internal/domain"
	"voxrag/internal/embedding/hashing"
	"voxrag/internal/embedding/openai"
)

// New builds the embedder selected by cfg. The result is created once per
// process and shared read-only by every worker.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "hashing", "":
		emb = hashing.NewEmbedder(cfg.Dimension)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Type)
	}
	if cfg.RequestsPerSecond > 0 {
		emb = NewRateLimited(emb, cfg.RequestsPerSecond)
	}
	return emb, nil
}

// RateLimited bounds the call rate to an embedder shared by many workers.
type RateLimited struct {
	domain.Embedder
	limiter *rate.Limiter
}

// NewRateLimited wraps emb so that at most rps calls per second are issued.
func NewRateLimited(emb domain.Embedder, rps float64) *RateLimited {
	return &RateLimited{Embedder: emb, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Embedder.Embed(ctx, text)
}
