package ingest

import (
	"errors"
	"time"

	"voxrag/internal/domain"
)

// Status is the per-document result of an ingestion run.
type Status string

const (
	StatusIndexed   Status = "indexed"
	StatusNoContent Status = "no_content"
	StatusFailed    Status = "failed"
	// StatusCancelled marks documents that were never started because the run was interrupted.
	StatusCancelled Status = "cancelled"
)

// Outcome is what a worker reports for one document.
type Outcome struct {
	Document domain.SourceDocument
	Status   Status
	Units    int
	Err      error
	Duration time.Duration
}

// Event is emitted once per completed document, in completion order.
type Event struct {
	Outcome   Outcome
	Completed int
	Total     int
}

// ProgressFunc receives progress events on the coordinator goroutine.
type ProgressFunc func(Event)

// Report is the progress state of a run. It is owned by the coordinator
// until Run returns.
type Report struct {
	Collection string
	Total      int
	Indexed    int
	NoContent  int
	Failed     int
	Cancelled  int
	Units      int
	Outcomes   []Outcome
	Duration   time.Duration
}

// Completed is the number of documents with a recorded outcome.
func (r *Report) Completed() int { return len(r.Outcomes) }

// HasFailures reports whether any document failed.
func (r *Report) HasFailures() bool { return r.Failed > 0 }

// Err joins the errors of every failed document, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

func (r *Report) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusIndexed:
		r.Indexed++
		r.Units += o.Units
	case StatusNoContent:
		r.NoContent++
	case StatusFailed:
		r.Failed++
	case StatusCancelled:
		r.Cancelled++
	}
}
