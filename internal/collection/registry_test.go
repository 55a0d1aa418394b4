package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxrag/internal/config"
	"voxrag/internal/domain"
)

func testContexts() config.ContextsConfig {
	yes := true
	return config.ContextsConfig{
		Formats:     []string{"pdf"},
		WorkerCount: 4,
		Data: map[string]config.ContextConfig{
			"manuals": {FolderPath: "/docs"},
			"Notes":   {FolderPath: "/notes", Formats: []string{".TXT", "md", "txt"}, WorkerCount: 2, Recursive: &yes},
		},
	}
}

func TestResolveAppliesDefaults(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testContexts())

	col, err := reg.Resolve("manuals")
	require.NoError(t, err)
	assert.Equal(t, domain.Collection{
		Name:        "manuals",
		FolderPath:  "/docs",
		Formats:     []string{"pdf"},
		WorkerCount: 4,
		Index:       "manuals",
	}, col)
}

func TestResolveAppliesOverrides(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testContexts())

	col, err := reg.Resolve("Notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"txt", "md"}, col.Formats)
	assert.Equal(t, 2, col.WorkerCount)
	assert.True(t, col.Recursive)
	assert.Equal(t, "notes", col.Index)
}

func TestResolveUnknownIsConfigurationError(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testContexts())

	for _, name := range []string{"", "manual", "MANUALS", "unknown"} {
		_, err := reg.Resolve(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, domain.ErrUnknownCollection)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	}
}

func TestNamesSorted(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"Notes", "manuals"}, NewRegistry(testContexts()).Names())
}
