// Package vectorstore defines the persistent store boundary used by the index
// writer and the retriever.
package vectorstore

import (
	"context"
	"errors"
	"strconv"

	"voxrag/internal/domain"
)

// ErrNamespaceNotFound is returned by Search when nothing was ever indexed
// under the namespace.
var ErrNamespaceNotFound = errors.New("namespace not found")

// Metadata keys stored with every entry.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaIndex  = "index"
)

// Entry is one record written to a namespace.
type Entry struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// Hit is one ranked search result.
type Hit struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// Storage persists vectors partitioned by namespace and supports similarity search.
// Implementations must accept concurrent writers; the pipeline does no locking of its own.
type Storage interface {
	// EnsureNamespace creates the namespace for vectors of the given dimension
	// if it does not exist. It is idempotent.
	EnsureNamespace(ctx context.Context, namespace string, dimension int) error
	// Upsert writes entries. They may not be searchable until Refresh.
	Upsert(ctx context.Context, namespace string, entries []Entry) error
	// Refresh makes every acknowledged write searchable.
	Refresh(ctx context.Context, namespace string) error
	// Search returns up to topK hits, most similar first.
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]Hit, error)
	// DeleteBySource removes entries whose source metadata equals source.
	DeleteBySource(ctx context.Context, namespace, source string) error
	Close() error
}

// EntryMetadata builds the metadata stored for a unit.
func EntryMetadata(u domain.TextUnit) map[string]string {
	return map[string]string{
		MetaSource: u.Source,
		MetaPage:   strconv.Itoa(u.Page),
		MetaIndex:  strconv.Itoa(u.Index),
	}
}

// UnitFromHit rebuilds the text unit described by a hit's metadata.
func UnitFromHit(h Hit) domain.TextUnit {
	page, _ := strconv.Atoi(h.Metadata[MetaPage])
	idx, _ := strconv.Atoi(h.Metadata[MetaIndex])
	return domain.TextUnit{
		Source:  h.Metadata[MetaSource],
		Page:    page,
		Index:   idx,
		Content: h.Text,
	}
}
