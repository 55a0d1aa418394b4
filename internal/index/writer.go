// Package index writes embedded units into the vector store and makes them searchable.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"voxrag/internal/domain"
	"voxrag/internal/vectorstore"
)

// Policy decides what happens to entries from an earlier run of the same document.
type Policy string

const (
	// PolicyAppend inserts new entries and never deduplicates.
	PolicyAppend Policy = "append"
	// PolicyReplace deletes the document's previous entries before writing,
	// and derives entry ids from the namespace, source path and unit index.
	PolicyReplace Policy = "replace"
)

// ParsePolicy validates a configured policy name. Empty means append.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAppend:
		return PolicyAppend, nil
	case PolicyReplace:
		return PolicyReplace, nil
	}
	return "", fmt.Errorf("%w: unknown reindex policy %q", domain.ErrConfiguration, s)
}

// Writer upserts one document's units at a time.
type Writer struct {
	store   vectorstore.Storage
	policy  Policy
	logger  *slog.Logger
	ensured sync.Map
}

// NewWriter creates a writer for store.
func NewWriter(store vectorstore.Storage, policy Policy, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = PolicyAppend
	}
	return &Writer{store: store, policy: policy, logger: logger}
}

// Policy returns the configured reindex policy.
func (w *Writer) Policy() Policy { return w.policy }

// Write stores the units of a single source document in namespace and refreshes
// it so that later searches observe them. Failures are returned as
// *domain.IndexWriteError and are not retried.
func (w *Writer) Write(ctx context.Context, namespace, source string, units []domain.EmbeddedUnit) error {
	if len(units) == 0 {
		return nil
	}
	wrap := func(err error) error {
		return &domain.IndexWriteError{Namespace: namespace, Source: source, Err: err}
	}

	if err := w.ensureNamespace(ctx, namespace, len(units[0].Vector)); err != nil {
		return wrap(err)
	}
	if w.policy == PolicyReplace {
		if err := w.store.DeleteBySource(ctx, namespace, source); err != nil {
			return wrap(fmt.Errorf("delete previous entries: %w", err))
		}
	}

	entries := make([]vectorstore.Entry, len(units))
	for i, u := range units {
		entries[i] = vectorstore.Entry{
			ID:       w.entryID(namespace, source, u.Unit.Index),
			Text:     u.Unit.Content,
			Vector:   u.Vector,
			Metadata: vectorstore.EntryMetadata(u.Unit),
		}
	}
	if err := w.store.Upsert(ctx, namespace, entries); err != nil {
		return wrap(err)
	}
	if err := w.store.Refresh(ctx, namespace); err != nil {
		return wrap(fmt.Errorf("refresh: %w", err))
	}
	w.logger.Debug("Indexed document", "namespace", namespace, "source", source, "entries", len(entries))
	return nil
}

func (w *Writer) ensureNamespace(ctx context.Context, namespace string, dimension int) error {
	if _, ok := w.ensured.Load(namespace); ok {
		return nil
	}
	if err := w.store.EnsureNamespace(ctx, namespace, dimension); err != nil {
		return err
	}
	w.ensured.Store(namespace, struct{}{})
	return nil
}

func (w *Writer) entryID(namespace, source string, index int) string {
	if w.policy == PolicyReplace {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"\x00"+source+"#"+strconv.Itoa(index))).String()
	}
	return uuid.NewString()
}
