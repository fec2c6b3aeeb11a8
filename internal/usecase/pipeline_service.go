package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/detector"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	"github.com/DOH-JDJ0303/waphl-data/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrReadOnlyStore is returned by MarkKnown when the pipeline's known-id
// store cannot be written.
var ErrReadOnlyStore = errors.New("known-id store is read-only")

// Pipeline wires one source to one dispatcher.
type Pipeline struct {
	Name     string
	Kind     string
	Schedule string
	Source   domain.ItemSource
	Known    domain.KnownIDStore
	Dispatch domain.Dispatcher
	Options  detector.Options
}

// PipelineInfo is the public description of a configured pipeline.
type PipelineInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Schedule string `json:"schedule,omitempty"`
	Limit    int    `json:"limit"`
}

// RunOverrides adjust a single invocation.
type RunOverrides struct {
	Limit  *int
	DryRun bool
}

// PipelineService runs pipelines and keeps their history.
type PipelineService struct {
	pipelines map[string]*Pipeline
	runs      domain.RunRepository
	locker    domain.Locker
	detector  *detector.Detector
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPipelineService creates a PipelineService. runs and locker may be nil:
// reports are then not persisted and overlapping runs are allowed.
func NewPipelineService(pipelines []*Pipeline, runs domain.RunRepository, locker domain.Locker, logger *slog.Logger) *PipelineService {
	byName := make(map[string]*Pipeline, len(pipelines))
	for _, p := range pipelines {
		byName[p.Name] = p
	}
	return &PipelineService{
		pipelines: byName,
		runs:      runs,
		locker:    locker,
		detector:  detector.New(logger),
		logger:    logger.With("component", "pipeline-service"),
		tracer:    otel.Tracer("waphl-usecase"),
		now:       time.Now,
	}
}

func (s *PipelineService) pipeline(name string) (*Pipeline, error) {
	p, ok := s.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, name)
	}
	return p, nil
}

// List describes the configured pipelines ordered by name.
func (s *PipelineService) List() []PipelineInfo {
	infos := make([]PipelineInfo, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		infos = append(infos, PipelineInfo{Name: p.Name, Kind: p.Kind, Schedule: p.Schedule, Limit: p.Options.Limit})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Run performs one detector invocation. The error is non-nil only when the
// run could not start or the listing failed; dispatch failures are in the
// report (see Report.Err).
func (s *PipelineService) Run(ctx context.Context, name string, overrides RunOverrides) (*domain.Report, error) {
	p, err := s.pipeline(name)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "service.Run", trace.WithAttributes(attribute.String("pipeline", name)))
	defer span.End()

	if s.locker != nil {
		lock, err := s.locker.Lock(ctx, "pipeline/"+name)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to acquire run lock")
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release run lock", "pipeline", name, "error", err)
			}
		}()
	}

	opts := p.Options
	if overrides.Limit != nil {
		opts.Limit = *overrides.Limit
	}
	opts.DryRun = opts.DryRun || overrides.DryRun

	report := &domain.Report{
		ID:        uuid.New().String(),
		Pipeline:  name,
		StartTime: s.now().UTC(),
		Limit:     opts.Limit,
		DryRun:    opts.DryRun,
	}
	span.SetAttributes(attribute.String("run.id", report.ID))
	logger := s.logger.With("pipeline", name, "run_id", report.ID)
	logger.Info("pipeline run started", "limit", opts.Limit, "dry_run", opts.DryRun)

	listing, known, err := s.collect(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream listing failed")
		logger.Error("pipeline run aborted", "error", err)
		report.Status = domain.RunStatusFailed
		report.Error = err.Error()
		s.finish(ctx, report, logger)
		return report, err
	}

	result := s.detector.DetectAndDispatch(ctx, listing.Items, known, opts, p.Dispatch)

	report.Listed = result.Listed + len(listing.Skipped)
	report.KnownIDs = len(known)
	report.Skipped = append(append([]domain.Skip(nil), listing.Skipped...), result.Skipped...)
	report.Dropped = result.Dropped
	report.Outcomes = result.Outcomes
	report.Status = domain.RunStatusSuccess
	if report.Failed() > 0 {
		report.Status = domain.RunStatusPartial
		span.SetStatus(codes.Error, "some dispatches failed")
	}
	s.finish(ctx, report, logger)
	return report, nil
}

// RunAll runs every pipeline in name order. A failing pipeline does not stop
// the others; listing failures are joined into the returned error.
func (s *PipelineService) RunAll(ctx context.Context, overrides RunOverrides) ([]*domain.Report, error) {
	var (
		reports []*domain.Report
		errs    []error
	)
	for _, info := range s.List() {
		report, err := s.Run(ctx, info.Name, overrides)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline %s: %w", info.Name, err))
		}
	}
	return reports, errors.Join(errs...)
}

func (s *PipelineService) collect(ctx context.Context, p *Pipeline) (*domain.Listing, domain.IDSet, error) {
	known := domain.IDSet{}
	if p.Known != nil {
		ids, err := p.Known.KnownIDs(ctx)
		if err != nil {
			return nil, nil, upstream("failed to read known ids", err)
		}
		known = ids
	}
	listing, err := p.Source.List(ctx)
	if err != nil {
		return nil, nil, upstream("failed to list work items", err)
	}
	return listing, known, nil
}

func upstream(msg string, err error) error {
	if errors.Is(err, domain.ErrUpstreamListing) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamListing, msg, err)
}

func (s *PipelineService) finish(ctx context.Context, report *domain.Report, logger *slog.Logger) {
	report.EndTime = s.now().UTC()
	metrics.ObserveReport(report)

	if s.runs != nil {
		if err := s.runs.Save(context.WithoutCancel(ctx), report); err != nil {
			logger.Error("failed to save run report", "error", err)
		}
	}
	logger.Info("pipeline run finished",
		"status", string(report.Status),
		"listed", report.Listed,
		"dispatched", len(report.Dispatched()),
		"failed", report.Failed(),
		"dropped", len(report.Dropped),
		"duration", report.EndTime.Sub(report.StartTime).String(),
	)
}

// History lists the reports of a pipeline, newest first.
func (s *PipelineService) History(ctx context.Context, name string, page, pageSize int) ([]*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "service.History")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline", name),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	if _, err := s.pipeline(name); err != nil {
		return nil, err
	}
	if s.runs == nil {
		return []*domain.Report{}, nil
	}
	reports, err := s.runs.ListByPipeline(ctx, name, page, pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list run history from repository")
	}
	return reports, err
}

// Get returns one report.
func (s *PipelineService) Get(ctx context.Context, name, runID string) (*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "service.Get")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name), attribute.String("run.id", runID))

	if _, err := s.pipeline(name); err != nil {
		return nil, err
	}
	if s.runs == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	report, err := s.runs.Get(ctx, name, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get run from repository")
	}
	return report, err
}

// MarkKnown adds ids to the pipeline's known-id store so later runs skip
// them. It is meant for the downstream consumer once an item is processed.
func (s *PipelineService) MarkKnown(ctx context.Context, name string, ids ...string) error {
	ctx, span := s.tracer.Start(ctx, "service.MarkKnown")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", name), attribute.Int("ids", len(ids)))

	p, err := s.pipeline(name)
	if err != nil {
		return err
	}
	store, ok := p.Known.(domain.WritableIDStore)
	if !ok {
		return fmt.Errorf("%w: pipeline %s", ErrReadOnlyStore, name)
	}
	if err := store.Add(ctx, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add known ids")
		return fmt.Errorf("failed to mark ids known for %s: %w", name, err)
	}
	s.logger.Info("marked ids known", "pipeline", name, "count", len(ids))
	return nil
}

// Tasks returns one scheduler task per pipeline with a schedule.
func (s *PipelineService) Tasks() []domain.Task {
	var tasks []domain.Task
	for _, info := range s.List() {
		if info.Schedule == "" {
			continue
		}
		tasks = append(tasks, &pipelineTask{service: s, name: info.Name, schedule: info.Schedule})
	}
	return tasks
}

type pipelineTask struct {
	service  *PipelineService
	name     string
	schedule string
}

func (t *pipelineTask) Name() string     { return "pipeline/" + t.name }
func (t *pipelineTask) Schedule() string { return t.schedule }

func (t *pipelineTask) Run(ctx context.Context) error {
	report, err := t.service.Run(ctx, t.name, RunOverrides{})
	if errors.Is(err, domain.ErrLockNotAcquired) {
		t.service.logger.Info("pipeline already running elsewhere, skipping", "pipeline", t.name)
		return nil
	}
	if err != nil {
		return err
	}
	return report.Err()
}
