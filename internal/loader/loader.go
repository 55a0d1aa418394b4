// Package loader discovers collection documents and extracts their text units.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"voxrag/internal/domain"
)

// PageReader extracts the raw text of each page of a file.
type PageReader interface {
	ReadPages(ctx context.Context, path string) ([]string, error)
}

// Loader enumerates and loads source documents.
type Loader struct {
	splitter domain.Splitter
	readers  map[string]PageReader
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithReader registers (or replaces) the reader used for a file extension.
func WithReader(format string, r PageReader) Option {
	return func(l *Loader) {
		l.readers[strings.ToLower(format)] = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a loader with PDF and plain-text readers registered.
func New(splitter domain.Splitter, opts ...Option) *Loader {
	l := &Loader{
		splitter: splitter,
		readers: map[string]PageReader{
			"pdf":      PDFReader{},
			"txt":      TextReader{},
			"md":       TextReader{},
			"markdown": TextReader{},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enumerate lists files under the collection folder whose extension is one of
// the collection formats. The result is de-duplicated and sorted so that a run
// reports progress in a stable order.
func (l *Loader) Enumerate(col domain.Collection) ([]domain.SourceDocument, error) {
	info, err := os.Stat(col.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %q folder: %v", domain.ErrConfiguration, col.Name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: collection %q folder %s is not a directory", domain.ErrConfiguration, col.Name, col.FolderPath)
	}

	fsys := os.DirFS(col.FolderPath)
	seen := make(map[string]struct{})
	var docs []domain.SourceDocument
	for _, format := range col.Formats {
		pattern := "*." + format
		if col.Recursive {
			pattern = "**/*." + format
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s in %s: %w", pattern, col.FolderPath, err)
		}
		for _, m := range matches {
			path := filepath.Join(col.FolderPath, filepath.FromSlash(m))
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			docs = append(docs, domain.SourceDocument{Path: path, Format: format})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	l.logger.Debug("Enumerated documents", "collection", col.Name, "count", len(docs))
	return docs, nil
}

// Load extracts the document's pages, splits them into blocks and drops blocks
// whose trimmed content is empty. Any failure is returned as a
// *domain.DocumentLoadError carrying the document path. A document without
// content yields an empty slice and no error.
func (l *Loader) Load(ctx context.Context, doc domain.SourceDocument) (units []domain.TextUnit, err error) {
	reader, ok := l.readers[strings.ToLower(doc.Format)]
	if !ok {
		return nil, &domain.DocumentLoadError{Path: doc.Path, Err: fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, doc.Format)}
	}
	pages, err := readPages(ctx, reader, doc.Path)
	if err != nil {
		return nil, &domain.DocumentLoadError{Path: doc.Path, Err: err}
	}
	for p, page := range pages {
		for _, block := range l.splitter.Split(page) {
			if strings.TrimSpace(block) == "" {
				continue
			}
			units = append(units, domain.TextUnit{
				Source:  doc.Path,
				Page:    p + 1,
				Index:   len(units),
				Content: block,
			})
		}
	}
	return units, nil
}

// readPages converts a reader panic into an error; the PDF parser panics on
// some malformed inputs.
func readPages(ctx context.Context, r PageReader, path string) (pages []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed document: %v", rec)
		}
	}()
	return r.ReadPages(ctx, path)
}

// TextReader reads UTF-8 text files. Form feeds separate pages.
type TextReader struct{}

func (TextReader) ReadPages(_ context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\f"), nil
}
