package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"voxrag/internal/vectorstore"
)

type namespace struct {
	dimension int
	visible   []vectorstore.Entry
	pending   []vectorstore.Entry
}

// Storage is an in-memory vector store using brute-force cosine similarity.
// Upserted entries stay pending until Refresh, like a near-real-time index.
type Storage struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
}

func NewStorage() *Storage { return &Storage{namespaces: make(map[string]*namespace)} }

func (s *Storage) EnsureNamespace(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.namespaces[name]; ok {
		if ns.dimension != dimension {
			return fmt.Errorf("namespace %s has dimension %d, got %d", name, ns.dimension, dimension)
		}
		return nil
	}
	s.namespaces[name] = &namespace{dimension: dimension}
	return nil
}

func (s *Storage) Upsert(_ context.Context, name string, entries []vectorstore.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return fmt.Errorf("upsert %s: %w", name, vectorstore.ErrNamespaceNotFound)
	}
	for _, e := range entries {
		if len(e.Vector) != ns.dimension {
			return fmt.Errorf("vector dimension mismatch: %d != %d", len(e.Vector), ns.dimension)
		}
	}
	for _, e := range entries {
		ns.visible = removeID(ns.visible, e.ID)
		ns.pending = removeID(ns.pending, e.ID)
	}
	ns.pending = append(ns.pending, entries...)
	return nil
}

func (s *Storage) Refresh(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return fmt.Errorf("refresh %s: %w", name, vectorstore.ErrNamespaceNotFound)
	}
	ns.visible = append(ns.visible, ns.pending...)
	ns.pending = nil
	return nil
}

func (s *Storage) Search(_ context.Context, name string, vector []float32, topK int) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return nil, fmt.Errorf("search %s: %w", name, vectorstore.ErrNamespaceNotFound)
	}
	if topK <= 0 {
		topK = 5
	}
	scores := make([]float64, len(ns.visible))
	for i := range ns.visible {
		scores[i] = cosine(ns.visible[i].Vector, vector)
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	hits := make([]vectorstore.Hit, 0, topK)
	for _, j := range idxs[:topK] {
		e := ns.visible[j]
		hits = append(hits, vectorstore.Hit{ID: e.ID, Text: e.Text, Metadata: e.Metadata, Score: scores[j]})
	}
	return hits, nil
}

func (s *Storage) DeleteBySource(_ context.Context, name, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return nil
	}
	keep := func(entries []vectorstore.Entry) []vectorstore.Entry {
		out := entries[:0]
		for _, e := range entries {
			if e.Metadata[vectorstore.MetaSource] != source {
				out = append(out, e)
			}
		}
		return out
	}
	ns.visible = keep(ns.visible)
	ns.pending = keep(ns.pending)
	return nil
}

// Count returns the number of searchable entries in a namespace.
func (s *Storage) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ns, ok := s.namespaces[name]; ok {
		return len(ns.visible)
	}
	return 0
}

func (s *Storage) Close() error { return nil }

func removeID(entries []vectorstore.Entry, id string) []vectorstore.Entry {
	if id == "" {
		return entries
	}
	for i, e := range entries {
		if e.ID == id {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// argsortDesc orders indexes by descending score; ties keep insertion order.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return vals[idxs[i]] > vals[idxs[j]] })
	return idxs
}
