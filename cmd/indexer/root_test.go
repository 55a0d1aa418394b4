package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, docs string, formats string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf(`
vectorstore:
  type: memory
contexts:
  formats: [%s]
  data:
    manuals:
      folder_path: %s
filename_pattern: %s
`, formats, docs, filepath.Join(dir, "logs", "indexer.log"))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetIn(bytes.NewReader(nil))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexerIndexesContext(t *testing.T) {
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("Reset the pump."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "empty.txt"), []byte("  \n"), 0o644))

	out, err := run(t, "manuals", "--config", writeConfig(t, docs, "txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "Document processed: "+filepath.Join(docs, "a.txt"))
	assert.Contains(t, out, "No valid content found in document: "+filepath.Join(docs, "empty.txt"))
	assert.Contains(t, out, "Indexed 1 of 2 documents")
}

func TestIndexerFailsOnBrokenDocument(t *testing.T) {
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "bad.pdf"), []byte("not a pdf"), 0o644))

	out, err := run(t, "--all", "--config", writeConfig(t, docs, "pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manuals (1 failed, 0 cancelled)")
	assert.Contains(t, out, "Error processing document")
}

func TestIndexerEmptyFolder(t *testing.T) {
	out, err := run(t, "manuals", "--config", writeConfig(t, t.TempDir(), "pdf"))
	require.NoError(t, err)
	assert.Contains(t, out, "No documents found to index.")
}

func TestIndexerUnknownContext(t *testing.T) {
	_, err := run(t, "recipes", "--config", writeConfig(t, t.TempDir(), "pdf"))
	assert.ErrorContains(t, err, "unknown collection")
}
