// Package detector selects work items that have not been processed yet and
// hands each of them to a dispatcher.
//
// A run is a single pass: de-duplicate the listing, optionally reduce it with
// a Selector, drop ids already present in the cache, order and cap the batch,
// then dispatch item by item. A failed dispatch never stops the batch. The
// detector does not write the cache; the downstream consumer does, so the
// delivery guarantee is at-least-once.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultCallTimeout bounds a single dispatch call when Options.CallTimeout
// is not set.
const DefaultCallTimeout = 30 * time.Second

// Result is the outcome of DetectAndDispatch.
type Result struct {
	Plan
	Outcomes []domain.Outcome
}

// Detector runs the selection and dispatch steps with logging and tracing.
type Detector struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Detector.
func New(logger *slog.Logger) *Detector {
	return &Detector{
		logger: logger.With("component", "detector"),
		tracer: otel.Tracer("waphl-detector"),
	}
}

// DetectAndDispatch selects the new items among items and dispatches them.
// Per-item problems are recorded in the result, never returned as an error.
func (d *Detector) DetectAndDispatch(ctx context.Context, items []domain.WorkItem, known domain.IDSet, opts Options, dispatcher domain.Dispatcher) *Result {
	ctx, span := d.tracer.Start(ctx, "detector.DetectAndDispatch",
		trace.WithAttributes(
			attribute.Int("items.listed", len(items)),
			attribute.Int("items.known", len(known)),
			attribute.Int("batch.limit", opts.Limit),
		))
	defer span.End()

	plan := Select(items, known, opts)
	d.logPlan(ctx, plan)
	span.SetAttributes(
		attribute.Int("batch.size", len(plan.Batch)),
		attribute.Int("batch.dropped", len(plan.Dropped)),
	)

	res := &Result{Plan: plan}
	if opts.DryRun {
		res.Outcomes = make([]domain.Outcome, len(plan.Batch))
		for i, item := range plan.Batch {
			res.Outcomes[i] = domain.Outcome{Item: item, Status: domain.OutcomePlanned}
			d.logger.InfoContext(ctx, "dry run, not dispatching", "item_id", item.ID)
		}
		return res
	}

	res.Outcomes = d.dispatchAll(ctx, plan.Batch, dispatcher, opts)
	failed := 0
	for _, o := range res.Outcomes {
		if o.Status == domain.OutcomeFailed {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("batch.failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d dispatches failed", failed))
	}
	return res
}

func (d *Detector) logPlan(ctx context.Context, plan Plan) {
	for _, s := range plan.Skipped {
		if s.Reason == domain.SkipMalformed {
			d.logger.WarnContext(ctx, "skipping malformed item", "item_id", s.ItemID, "reason", s.Detail)
			continue
		}
		d.logger.InfoContext(ctx, "skipping item", "item_id", s.ItemID, "reason", string(s.Reason), "detail", s.Detail)
	}
	for _, s := range plan.Dropped {
		d.logger.InfoContext(ctx, "dropping item over batch limit", "item_id", s.ItemID, "detail", s.Detail)
	}
	if len(plan.Dropped) > 0 {
		d.logger.WarnContext(ctx, "batch truncated", "kept", len(plan.Batch), "dropped", len(plan.Dropped))
	}
	d.logger.InfoContext(ctx, "batch selected", "listed", plan.Listed, "selected", len(plan.Batch))
}

func (d *Detector) dispatchAll(ctx context.Context, batch []domain.WorkItem, dispatcher domain.Dispatcher, opts Options) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(batch))
	if opts.Concurrency <= 1 {
		for i, item := range batch {
			outcomes[i] = d.dispatchOne(ctx, item, dispatcher, opts)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, item := range batch {
		g.Go(func() error {
			outcomes[i] = d.dispatchOne(ctx, item, dispatcher, opts)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// dispatchOne sends one item, retrying retryable failures per opts.Retry.
func (d *Detector) dispatchOne(ctx context.Context, item domain.WorkItem, dispatcher domain.Dispatcher, opts Options) domain.Outcome {
	ctx, span := d.tracer.Start(ctx, "detector.Dispatch", trace.WithAttributes(attribute.String("item.id", item.ID)))
	defer span.End()

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	logger := d.logger.With("item_id", item.ID)

	out := domain.Outcome{Item: item}
	var lastErr error
	for attempt := 0; attempt <= opts.Retry.MaxRetries; attempt++ {
		out.Attempts = attempt + 1
		ref, err := callWithTimeout(ctx, timeout, dispatcher, item)
		if err == nil {
			out.Status = domain.OutcomeDispatched
			out.Ref = ref
			out.Retryable = false
			logger.InfoContext(ctx, "dispatched item", "ref", ref, "attempts", out.Attempts)
			return out
		}
		lastErr = err
		out.Retryable = isRetryable(ctx, err)
		logger.WarnContext(ctx, "dispatch attempt failed", "attempt", out.Attempts, "retryable", out.Retryable, "error", err)
		if !out.Retryable || attempt == opts.Retry.MaxRetries {
			break
		}
		if !sleep(ctx, opts.Retry.Backoff) {
			break
		}
	}

	out.Status = domain.OutcomeFailed
	out.Error = fmt.Errorf("%w: %w", domain.ErrDispatch, lastErr).Error()
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "dispatch failed")
	logger.ErrorContext(ctx, "failed to dispatch item", "attempts", out.Attempts, "error", lastErr)
	return out
}

func callWithTimeout(ctx context.Context, timeout time.Duration, dispatcher domain.Dispatcher, item domain.WorkItem) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ref, err := dispatcher.Dispatch(callCtx, item)
	if err == nil {
		return ref, nil
	}
	if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return "", fmt.Errorf("%w: dispatch timed out after %s: %w", domain.ErrRetryable, timeout, err)
	}
	return "", err
}

// isRetryable treats timeouts and errors marked with ErrRetryable as
// transient, unless the whole run has been cancelled.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, domain.ErrRetryable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
