// Package ingest fans document ingestion out across a bounded worker pool.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"voxrag/internal/domain"
	"voxrag/internal/telemetry"
)

const defaultWorkerCount = 4

// DocumentSource enumerates and loads the documents of a collection.
type DocumentSource interface {
	Enumerate(col domain.Collection) ([]domain.SourceDocument, error)
	Load(ctx context.Context, doc domain.SourceDocument) ([]domain.TextUnit, error)
}

// IndexWriter stores the embedded units of one document.
type IndexWriter interface {
	Write(ctx context.Context, namespace, source string, units []domain.EmbeddedUnit) error
}

// task carries everything a worker needs; workers share nothing else with the coordinator.
type task struct {
	doc        domain.SourceDocument
	collection string
	namespace  string
}

// Coordinator runs load, embed and write for every document of a collection.
type Coordinator struct {
	source   DocumentSource
	embedder domain.Embedder
	writer   IndexWriter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewCoordinator creates a coordinator. The embedder is shared read-only by all workers.
func NewCoordinator(source DocumentSource, embedder domain.Embedder, writer IndexWriter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		source:   source,
		embedder: embedder,
		writer:   writer,
		logger:   logger,
		tracer:   otel.Tracer("voxrag/ingest"),
	}
}

// Run ingests every document of col. Per-document failures are recorded in the
// report and never abort the run; only enumeration errors are returned.
// When ctx is cancelled, documents already started are finished and the rest
// are reported as cancelled.
func (c *Coordinator) Run(ctx context.Context, col domain.Collection, progress ProgressFunc) (*Report, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("collection", col.Name),
		attribute.String("namespace", col.Index),
	))
	defer span.End()

	docs, err := c.source.Enumerate(col)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	report := &Report{Collection: col.Name, Total: len(docs)}
	if len(docs) == 0 {
		c.logger.Warn("No documents found to index", "collection", col.Name, "folder", col.FolderPath)
		return report, nil
	}

	workers := col.WorkerCount
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	workers = min(workers, len(docs))
	c.logger.Info("Ingestion started", "collection", col.Name, "documents", len(docs), "workers", workers)

	results := make(chan Outcome, workers)
	go c.dispatch(ctx, col, docs, workers, results)

	for o := range results {
		report.record(o)
		c.logOutcome(col.Name, o)
		if progress != nil {
			progress(Event{Outcome: o, Completed: report.Completed(), Total: report.Total})
		}
	}

	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("documents", report.Total),
		attribute.Int("indexed", report.Indexed),
		attribute.Int("failed", report.Failed),
	)
	c.logger.Info("Ingestion finished",
		"collection", col.Name,
		"indexed", report.Indexed,
		"no_content", report.NoContent,
		"failed", report.Failed,
		"cancelled", report.Cancelled,
		"units", report.Units,
		"duration", report.Duration,
	)
	return report, nil
}

func (c *Coordinator) dispatch(ctx context.Context, col domain.Collection, docs []domain.SourceDocument, workers int, results chan<- Outcome) {
	defer close(results)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, doc := range docs {
		t := task{doc: doc, collection: col.Name, namespace: col.Index}
		if err := ctx.Err(); err != nil {
			results <- Outcome{Document: doc, Status: StatusCancelled, Err: err}
			continue
		}
		g.Go(func() error {
			results <- c.process(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) process(ctx context.Context, t task) (out Outcome) {
	start := time.Now()
	out = Outcome{Document: t.doc}
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Err = &domain.DocumentLoadError{Path: t.doc.Path, Err: fmt.Errorf("panic: %v", r)}
		}
		out.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		out.Status = StatusCancelled
		out.Err = err
		return out
	}

	ctx, span := c.tracer.Start(ctx, "ingest.document", trace.WithAttributes(
		attribute.String("collection", t.collection),
		attribute.String("path", t.doc.Path),
	))
	defer span.End()
	fail := func(err error) Outcome {
		telemetry.RecordError(span, err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	// A started document is finished even if the run is interrupted, so that
	// no document is left half-indexed.
	work := context.WithoutCancel(ctx)

	units, err := c.source.Load(work, t.doc)
	if err != nil {
		return fail(err)
	}
	if len(units) == 0 {
		out.Status = StatusNoContent
		out.Err = domain.ErrNoContent
		return out
	}

	embedded := make([]domain.EmbeddedUnit, 0, len(units))
	for _, u := range units {
		vec, err := c.embedder.Embed(work, u.Content)
		if err != nil {
			return fail(fmt.Errorf("embed %s page %d: %w", t.doc.Path, u.Page, err))
		}
		if isZero(vec) {
			// Cosine indexes reject zero-magnitude vectors.
			c.logger.Debug("Skipping unit without indexable terms", "collection", t.collection, "path", t.doc.Path, "page", u.Page)
			continue
		}
		embedded = append(embedded, domain.EmbeddedUnit{Collection: t.collection, Unit: u, Vector: vec})
	}
	if len(embedded) == 0 {
		out.Status = StatusNoContent
		out.Err = domain.ErrNoContent
		return out
	}

	if err := c.writer.Write(work, t.namespace, t.doc.Path, embedded); err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.Int("units", len(embedded)))
	out.Status = StatusIndexed
	out.Units = len(embedded)
	return out
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func (c *Coordinator) logOutcome(collection string, o Outcome) {
	switch o.Status {
	case StatusIndexed:
		c.logger.Info("Document processed", "collection", collection, "path", o.Document.Path, "units", o.Units, "duration", o.Duration)
	case StatusNoContent:
		c.logger.Warn("No valid content found in document", "collection", collection, "path", o.Document.Path)
	case StatusFailed:
		c.logger.Error("Document failed", "collection", collection, "path", o.Document.Path, "error", o.Err)
	case StatusCancelled:
		c.logger.Warn("Document skipped", "collection", collection, "path", o.Document.Path, "reason", o.Err)
	}
}
