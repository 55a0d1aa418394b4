// Package retriever serves top-k context lookups from a collection's namespace.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"voxrag/internal/domain"
	"voxrag/internal/vectorstore"
)

const defaultTopK = 4

// Retriever searches the store namespace of a collection.
type Retriever struct {
	store vectorstore.Storage
}

func New(store vectorstore.Storage) *Retriever {
	return &Retriever{store: store}
}

// Search returns up to k units most similar to query, best first. It fails
// with domain.ErrUnknownCollection when nothing was ever indexed for col, and
// returns an empty slice when the namespace holds no units.
func (r *Retriever) Search(ctx context.Context, col domain.Collection, query []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = defaultTopK
	}
	hits, err := r.store.Search(ctx, col.Index, query, k)
	if errors.Is(err, vectorstore.ErrNamespaceNotFound) {
		return nil, fmt.Errorf("%w: nothing indexed", domain.UnknownCollection(col.Name))
	}
	if err != nil {
		return nil, fmt.Errorf("retriever: search %s: %w", col.Name, err)
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, domain.SearchResult{Unit: vectorstore.UnitFromHit(h), Score: h.Score})
	}
	return results, nil
}
