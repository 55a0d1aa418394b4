package hashing

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e1 := NewEmbedder(128)
	e2 := NewEmbedder(128)

	v1, err := e1.Embed(ctx, "Replace the filter every six months.")
	require.NoError(t, err)
	v2, err := e2.Embed(ctx, "Replace the filter every six months.")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 128)
}

func TestEmbedNormalized(t *testing.T) {
	t.Parallel()
	v, err := NewEmbedder(0).Embed(context.Background(), "pump pressure valve")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(v, v)), 1e-5)
}

func TestEmbedStopwordsOnlyIsZeroVector(t *testing.T) {
	t.Parallel()
	v, err := NewEmbedder(16).Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
}

func TestEmbedSimilarTextScoresHigher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := NewEmbedder(512)
	q, _ := e.Embed(ctx, "how to replace the water filter")
	near, _ := e.Embed(ctx, "To replace the water filter, open the cover.")
	far, _ := e.Embed(ctx, "Battery charging takes four hours.")
	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestEmbedConcurrentUse(t *testing.T) {
	t.Parallel()
	e := NewEmbedder(64)
	want, _ := e.Embed(context.Background(), "shared model")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Embed(context.Background(), "shared model")
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
