package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxrag/internal/domain"
	"voxrag/internal/vectorstore"
	"voxrag/internal/vectorstore/memory"
)

var manuals = domain.Collection{Name: "manuals", Index: "manuals"}

func TestSearchUnknownNamespace(t *testing.T) {
	t.Parallel()
	_, err := New(memory.NewStorage()).Search(context.Background(), manuals, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSearchEmptyNamespace(t *testing.T) {
	t.Parallel()
	store := memory.NewStorage()
	require.NoError(t, store.EnsureNamespace(context.Background(), "manuals", 1))

	results, err := New(store).Search(context.Background(), manuals, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchReturnsAllWhenFewerThanK(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStorage()
	require.NoError(t, store.EnsureNamespace(ctx, "manuals", 2))
	require.NoError(t, store.Upsert(ctx, "manuals", []vectorstore.Entry{
		{ID: "1", Text: "pump manual", Vector: []float32{1, 0}, Metadata: vectorstore.EntryMetadata(domain.TextUnit{Source: "/docs/a.pdf", Page: 2, Index: 1})},
		{ID: "2", Text: "valve manual", Vector: []float32{0, 1}, Metadata: vectorstore.EntryMetadata(domain.TextUnit{Source: "/docs/b.pdf", Page: 1})},
	}))
	require.NoError(t, store.Refresh(ctx, "manuals"))

	results, err := New(store).Search(ctx, manuals, []float32{1, 0.1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.TextUnit{Source: "/docs/a.pdf", Page: 2, Index: 1, Content: "pump manual"}, results[0].Unit)
	assert.Greater(t, results[0].Score, results[1].Score)
}
