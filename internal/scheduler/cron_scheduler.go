// internal/scheduler/cron_scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	"github.com/DOH-JDJ0303/waphl-data/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a cronScheduler.
type Option func(*cronScheduler)

// WithSkipIfRunning drops a trigger while the previous run of the same task
// is still going.
func WithSkipIfRunning() Option {
	return func(s *cronScheduler) { s.skipIfRunning = true }
}

// cronScheduler triggers tasks at their schedule. Start may be called again
// after Stop, e.g. when leadership is regained.
type cronScheduler struct {
	mu            sync.Mutex
	cron          *cron.Cron
	tasks         map[string]domain.Task
	entries       map[string]cron.EntryID
	skipIfRunning bool
	runCtx        context.Context
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewCronScheduler(logger *slog.Logger, opts ...Option) domain.Schedular {
	s := &cronScheduler{
		tasks:   make(map[string]domain.Task),
		entries: make(map[string]cron.EntryID),
		runCtx:  context.Background(),
		logger:  logger.With("component", "cron-scheduler"),
		tracer:  otel.Tracer("waphl-scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = s.newCron()
	return s
}

func (s *cronScheduler) newCron() *cron.Cron {
	cl := cronLogger{s.logger}
	chain := []cron.JobWrapper{cron.Recover(cl)}
	if s.skipIfRunning {
		chain = append(chain, cron.SkipIfStillRunning(cl))
	}
	return cron.New(cron.WithParser(config.CronParser()), cron.WithChain(chain...), cron.WithLogger(cl))
}

// Start runs registered tasks until ctx is done or Stop is called. Tasks
// receive a context derived from ctx.
func (s *cronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	c := s.cron
	s.mu.Unlock()

	s.logger.Info("cron scheduler started", "tasks", len(c.Entries()))
	c.Start()
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// Stop halts triggering and waits for running tasks. Registered tasks are
// kept for the next Start.
func (s *cronScheduler) Stop() {
	s.mu.Lock()
	old := s.cron
	s.cron = s.newCron()
	s.entries = make(map[string]cron.EntryID, len(s.tasks))
	for name, task := range s.tasks {
		if id, err := s.cron.AddJob(task.Schedule(), s.wrap(task)); err == nil {
			s.entries[name] = id
		}
	}
	s.mu.Unlock()

	<-old.Stop().Done()
	s.logger.Info("cron scheduler stopped")
}

// AddTask registers or replaces task.
func (s *cronScheduler) AddTask(task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := task.Name()
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}

	entryID, err := s.cron.AddJob(task.Schedule(), s.wrap(task))
	if err != nil {
		s.logger.Error("failed to add task to cron", "task", name, "error", err)
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}

	s.tasks[name] = task
	s.entries[name] = entryID
	s.logger.Info("added task to scheduler", "task", name, "schedule", task.Schedule())
	return nil
}

// RemoveTask unregisters a task. Unknown names are ignored.
func (s *cronScheduler) RemoveTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
		delete(s.tasks, name)
		s.logger.Info("removed task from scheduler", "task", name)
	}
	return nil
}

func (s *cronScheduler) wrap(task domain.Task) cron.Job {
	return &cronTaskWrapper{
		task:   task,
		ctx:    s.taskContext,
		logger: s.logger.With("task", task.Name()),
		tracer: s.tracer,
	}
}

func (s *cronScheduler) taskContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

type cronTaskWrapper struct {
	task   domain.Task
	ctx    func() context.Context
	logger *slog.Logger
	tracer trace.Tracer
}

// Run is called by the cron library.
func (w *cronTaskWrapper) Run() {
	ctx, span := w.tracer.Start(w.ctx(), "scheduler.RunTask",
		trace.WithAttributes(attribute.String("task.name", w.task.Name())))
	defer span.End()

	w.logger.Info("running scheduled task")
	if err := w.task.Run(ctx); err != nil {
		w.logger.Error("scheduled task failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
		metrics.TaskExecutionTotal.WithLabelValues(w.task.Name(), "failed").Inc()
		return
	}
	metrics.TaskExecutionTotal.WithLabelValues(w.task.Name(), "success").Inc()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
