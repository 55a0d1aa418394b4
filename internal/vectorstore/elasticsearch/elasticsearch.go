// Package elasticsearch stores each namespace as an Elasticsearch index with a
// dense_vector field, using the text/vector/metadata document layout.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"voxrag/internal/vectorstore"
)

// Config contains connection details for Elasticsearch.
type Config struct {
	URL    string
	APIKey string
	// Transport overrides the HTTP transport; tests use it to reach a fake server.
	Transport http.RoundTripper
	// Timeout bounds the wait for response headers on the default transport.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Storage implements vectorstore.Storage on Elasticsearch.
type Storage struct {
	es     *elasticsearch.Client
	logger *slog.Logger
}

type document struct {
	Text     string            `json:"text"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata"`
}

// NewStorage creates a client for the cluster at cfg.URL.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:9200"
	}
	if cfg.Transport == nil && cfg.Timeout > 0 {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = cfg.Timeout
		cfg.Transport = tr
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{es: es, logger: logger}, nil
}

func (s *Storage) EnsureNamespace(ctx context.Context, name string, dimension int) error {
	res, err := s.es.Indices.Exists([]string{name}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch index exists %s: %w", name, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("elasticsearch index exists %s: %s", name, res.Status())
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"text": map[string]any{"type": "text"},
				"vector": map[string]any{
					"type":       "dense_vector",
					"dims":       dimension,
					"index":      true,
					"similarity": "cosine",
				},
				"metadata": map[string]any{
					"properties": map[string]any{
						vectorstore.MetaSource: map[string]any{"type": "keyword"},
					},
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	res, err = s.es.Indices.Create(name,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch create index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg := readError(res)
		if strings.Contains(msg, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("elasticsearch create index %s: %s", name, msg)
	}
	s.logger.Info("Created elasticsearch index", "index", name, "dimension", dimension)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, name string, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		action := map[string]map[string]string{"index": {"_index": name}}
		if e.ID != "" {
			action["index"]["_id"] = e.ID
		}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(document{Text: e.Text, Vector: e.Vector, Metadata: e.Metadata}); err != nil {
			return err
		}
	}
	res, err := s.es.Bulk(bytes.NewReader(buf.Bytes()),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(name),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk %s: %s", name, readError(res))
	}
	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("elasticsearch bulk %s: decode response: %w", name, err)
	}
	if out.Errors {
		failed := 0
		reason := ""
		for _, item := range out.Items {
			for _, r := range item {
				if r.Status >= 300 {
					failed++
					if reason == "" {
						reason = r.Error.Type + ": " + r.Error.Reason
					}
				}
			}
		}
		return fmt.Errorf("elasticsearch bulk %s: %d of %d items rejected (%s)", name, failed, len(entries), reason)
	}
	s.logger.Debug("Bulk indexed", "index", name, "count", len(entries))
	return nil
}

func (s *Storage) Refresh(ctx context.Context, name string) error {
	res, err := s.es.Indices.Refresh(
		s.es.Indices.Refresh.WithContext(ctx),
		s.es.Indices.Refresh.WithIndex(name),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch refresh %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("refresh %s: %w", name, vectorstore.ErrNamespaceNotFound)
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch refresh %s: %s", name, readError(res))
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, name string, vector []float32, topK int) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		topK = 4
	}
	query := map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": max(50, topK*10),
		},
		"size":    topK,
		"_source": []string{"text", "metadata"},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(name),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("search %s: %w", name, vectorstore.ErrNamespaceNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search %s: %s", name, readError(res))
	}
	var out struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Score  float64  `json:"_score"`
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("elasticsearch search %s: decode response: %w", name, err)
	}
	hits := make([]vectorstore.Hit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, vectorstore.Hit{ID: h.ID, Text: h.Source.Text, Metadata: h.Source.Metadata, Score: h.Score})
	}
	return hits, nil
}

func (s *Storage) DeleteBySource(ctx context.Context, name, source string) error {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"metadata." + vectorstore.MetaSource: source}},
	})
	if err != nil {
		return err
	}
	res, err := s.es.DeleteByQuery([]string{name}, bytes.NewReader(body),
		s.es.DeleteByQuery.WithContext(ctx),
		s.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete %s from %s: %w", source, name, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch delete %s from %s: %s", source, name, readError(res))
	}
	return nil
}

func (s *Storage) Close() error { return nil }

func readError(res *esapi.Response) string {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Sprintf("%s: %s", res.Status(), strings.TrimSpace(string(data)))
}

var _ vectorstore.Storage = (*Storage)(nil)
