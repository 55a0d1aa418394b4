package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
		"model":  "nomic-embed-text",
	})
}

func TestEmbedLearnsDimension(t *testing.T) {
	var gotModel string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		writeEmbedding(w, []float32{0.6, 0.8, 0})
	})

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dimension())

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8, 0}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "nomic-embed-text", gotModel)
}

func TestEmbedRejectsDimensionChange(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEmbedding(w, []float32{1, 0})
	})
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", Dimension: 3})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dimension")
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}
		writeEmbedding(w, []float32{1})
	})
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	})
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
