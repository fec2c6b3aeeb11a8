// internal/domain/run_report.go
package domain

import (
	"context"
	"fmt"
	"time"
)

// OutcomeStatus is the result of dispatching one item.
type OutcomeStatus string

const (
	OutcomeDispatched OutcomeStatus = "dispatched"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomePlanned    OutcomeStatus = "planned" // dry run, nothing sent
)

// Outcome is the per-item dispatch result.
type Outcome struct {
	Item      WorkItem      `json:"item"`
	Status    OutcomeStatus `json:"status"`
	Ref       string        `json:"ref,omitempty"`
	Error     string        `json:"error,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
	Attempts  int           `json:"attempts"`
}

// RunStatus summarises a whole invocation.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial" // some dispatches failed
	RunStatusFailed  RunStatus = "failed"  // listing or config failure, nothing dispatched
)

// Report is the audit record of one detector invocation.
type Report struct {
	ID        string    `json:"id"`
	Pipeline  string    `json:"pipeline"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    RunStatus `json:"status"`
	Listed    int       `json:"listed"`
	KnownIDs  int       `json:"known_ids"`
	Limit     int       `json:"limit,omitempty"`
	Skipped   []Skip    `json:"skipped,omitempty"`
	Dropped   []Skip    `json:"dropped,omitempty"`
	Outcomes  []Outcome `json:"outcomes,omitempty"`
	Error     string    `json:"error,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
}

// Dispatched returns the items that were handed off successfully.
func (r *Report) Dispatched() []WorkItem {
	var items []WorkItem
	for _, o := range r.Outcomes {
		if o.Status == OutcomeDispatched {
			items = append(items, o.Item)
		}
	}
	return items
}

// Failed returns the number of failed dispatches.
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			n++
		}
	}
	return n
}

// Err summarises dispatch failures once the batch has completed. It returns
// nil when every attempted dispatch succeeded.
func (r *Report) Err() error {
	if r.Error != "" {
		return fmt.Errorf("pipeline %s: %s", r.Pipeline, r.Error)
	}
	if n := r.Failed(); n > 0 {
		return fmt.Errorf("%w: %d of %d items in pipeline %s", ErrDispatch, n, len(r.Outcomes), r.Pipeline)
	}
	return nil
}

// Validate checks if the report can be persisted.
func (r *Report) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run report ID cannot be empty")
	}
	if r.Pipeline == "" {
		return fmt.Errorf("run report pipeline cannot be empty")
	}
	if r.StartTime.IsZero() {
		return fmt.Errorf("run report start time cannot be zero")
	}
	if r.Status == "" {
		return fmt.Errorf("run report status cannot be empty")
	}
	return nil
}

// RunRepository persists run reports for auditing.
type RunRepository interface {
	// Save persists a single report, replacing any earlier version.
	Save(ctx context.Context, report *Report) error
	// ListByPipeline returns reports newest first, paginated from page 1.
	ListByPipeline(ctx context.Context, pipeline string, page, pageSize int) ([]*Report, error)
	// Get returns ErrRunNotFound when the report does not exist.
	Get(ctx context.Context, pipeline, runID string) (*Report, error)
}
