// Package collection resolves user-chosen context names against configuration.
package collection

import (
	"sort"
	"strings"

	"voxrag/internal/config"
	"voxrag/internal/domain"
)

// Registry holds the configured collections. It never touches the filesystem.
type Registry struct {
	contexts config.ContextsConfig
}

// NewRegistry creates a registry over the contexts section of the config.
func NewRegistry(contexts config.ContextsConfig) *Registry {
	return &Registry{contexts: contexts}
}

// Names returns the configured collection names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.contexts.Data))
	for name := range r.contexts.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the collection for name, applying group-level defaults.
// Unknown names fail with domain.ErrUnknownCollection.
func (r *Registry) Resolve(name string) (domain.Collection, error) {
	c, ok := r.contexts.Data[name]
	if !ok {
		return domain.Collection{}, domain.UnknownCollection(name)
	}
	col := domain.Collection{
		Name:        name,
		FolderPath:  c.FolderPath,
		Formats:     normalizeFormats(c.Formats),
		WorkerCount: c.WorkerCount,
		Recursive:   r.contexts.Recursive,
		Index:       c.IndexName,
	}
	if len(col.Formats) == 0 {
		col.Formats = normalizeFormats(r.contexts.Formats)
	}
	if len(col.Formats) == 0 {
		col.Formats = []string{"pdf"}
	}
	if col.WorkerCount <= 0 {
		col.WorkerCount = r.contexts.WorkerCount
	}
	if col.WorkerCount <= 0 {
		col.WorkerCount = 4
	}
	if c.Recursive != nil {
		col.Recursive = *c.Recursive
	}
	if col.Index == "" {
		// Elasticsearch index names must be lowercase.
		col.Index = strings.ToLower(name)
	}
	return col, nil
}

func normalizeFormats(formats []string) []string {
	seen := make(map[string]struct{}, len(formats))
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
