package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxrag/internal/vectorstore"
)

func entry(id, source string, vec ...float32) vectorstore.Entry {
	return vectorstore.Entry{ID: id, Text: "text " + id, Vector: vec, Metadata: map[string]string{vectorstore.MetaSource: source}}
}

func TestSearchMissingNamespace(t *testing.T) {
	t.Parallel()
	_, err := NewStorage().Search(context.Background(), "manuals", []float32{1, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrNamespaceNotFound)
}

func TestSearchEmptyNamespaceReturnsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "manuals", 2))

	hits, err := s.Search(ctx, "manuals", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestWritesVisibleOnlyAfterRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "manuals", 2))
	require.NoError(t, s.Upsert(ctx, "manuals", []vectorstore.Entry{entry("a", "a.pdf", 1, 0)}))

	hits, err := s.Search(ctx, "manuals", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Refresh(ctx, "manuals"))
	hits, err = s.Search(ctx, "manuals", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSearchRanksAndTruncates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "ns", 2))
	require.NoError(t, s.Upsert(ctx, "ns", []vectorstore.Entry{
		entry("far", "x", 0, 1),
		entry("near", "x", 1, 0.1),
		entry("mid", "x", 1, 1),
	}))
	require.NoError(t, s.Refresh(ctx, "ns"))

	hits, err := s.Search(ctx, "ns", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)

	hits, err = s.Search(ctx, "ns", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestNamespacesAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "a", 2))
	require.NoError(t, s.EnsureNamespace(ctx, "b", 2))
	require.NoError(t, s.Upsert(ctx, "a", []vectorstore.Entry{entry("1", "x", 1, 0)}))
	require.NoError(t, s.Refresh(ctx, "a"))
	require.NoError(t, s.Refresh(ctx, "b"))

	assert.Equal(t, 1, s.Count("a"))
	assert.Equal(t, 0, s.Count("b"))
}

func TestEnsureNamespaceDimensionMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "a", 2))
	require.NoError(t, s.EnsureNamespace(ctx, "a", 2))
	assert.Error(t, s.EnsureNamespace(ctx, "a", 3))
	assert.Error(t, s.Upsert(ctx, "a", []vectorstore.Entry{entry("1", "x", 1, 0, 0)}))
}

func TestUpsertSameIDReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "a", 2))
	require.NoError(t, s.Upsert(ctx, "a", []vectorstore.Entry{entry("1", "x", 1, 0)}))
	require.NoError(t, s.Refresh(ctx, "a"))
	require.NoError(t, s.Upsert(ctx, "a", []vectorstore.Entry{entry("1", "x", 0, 1)}))
	require.NoError(t, s.Refresh(ctx, "a"))
	assert.Equal(t, 1, s.Count("a"))
}

func TestDeleteBySource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "a", 2))
	require.NoError(t, s.Upsert(ctx, "a", []vectorstore.Entry{entry("1", "x.pdf", 1, 0), entry("2", "y.pdf", 0, 1)}))
	require.NoError(t, s.Refresh(ctx, "a"))

	require.NoError(t, s.DeleteBySource(ctx, "a", "x.pdf"))
	require.NoError(t, s.DeleteBySource(ctx, "missing", "x.pdf"))
	hits, err := s.Search(ctx, "a", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].ID)
}

func TestConcurrentWriters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.EnsureNamespace(ctx, "a", 2))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, "a", []vectorstore.Entry{entry("", "x", 1, 0)}))
			assert.NoError(t, s.Refresh(ctx, "a"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Count("a"))
}
