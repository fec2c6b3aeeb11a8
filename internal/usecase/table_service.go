package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CrawlerRunner refreshes the catalog the queries read from.
type CrawlerRunner interface {
	Run(ctx context.Context, name string) error
}

// QueryRunner executes one statement to completion and returns its id. The
// result lands in outputLocation as <id>.csv.
type QueryRunner interface {
	Run(ctx context.Context, query, database, outputLocation string) (string, error)
}

// ObjectStore moves and removes query results.
type ObjectStore interface {
	Rename(ctx context.Context, bucket, src, dst string) error
	DeletePrefix(ctx context.Context, bucket, prefix string) (int, error)
}

// TableSettings locate the catalog and the published tables.
type TableSettings struct {
	Schedule string
	Crawler  string
	Database string
	Bucket   string
	// Key is the prefix the meta.<name>.csv tables are written under.
	Key   string
	Steps []TableStep
}

// TableBuild summarises one build.
type TableBuild struct {
	Tables map[string]string `json:"tables"`
	JobRef string            `json:"job_ref,omitempty"`
}

// TableService rebuilds the results summary tables: crawl, query, publish,
// then hand the follow-up table job to a dispatcher.
type TableService struct {
	settings TableSettings
	crawler  CrawlerRunner
	queries  QueryRunner
	objects  ObjectStore
	followUp domain.Dispatcher
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewTableService(settings TableSettings, crawler CrawlerRunner, queries QueryRunner, objects ObjectStore, followUp domain.Dispatcher, logger *slog.Logger) *TableService {
	if settings.Steps == nil {
		settings.Steps = DefaultTableSteps
	}
	settings.Key = strings.Trim(settings.Key, "/")
	return &TableService{
		settings: settings,
		crawler:  crawler,
		queries:  queries,
		objects:  objects,
		followUp: followUp,
		logger:   logger.With("component", "table-service"),
		tracer:   otel.Tracer("waphl-usecase"),
	}
}

func (s *TableService) tmpPrefix() string {
	return path.Join(s.settings.Key, "tmp") + "/"
}

// Build runs every step and stops at the first failure.
func (s *TableService) Build(ctx context.Context) (*TableBuild, error) {
	ctx, span := s.tracer.Start(ctx, "service.BuildTables", trace.WithAttributes(
		attribute.String("tables.database", s.settings.Database),
		attribute.String("tables.bucket", s.settings.Bucket),
	))
	defer span.End()

	fail := func(msg string, err error) (*TableBuild, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		s.logger.Error(msg, "error", err)
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	if s.settings.Crawler != "" {
		if err := s.crawler.Run(ctx, s.settings.Crawler); err != nil {
			return fail("failed to refresh catalog", err)
		}
	}

	outputLocation := fmt.Sprintf("s3://%s/%s", s.settings.Bucket, s.tmpPrefix())
	build := &TableBuild{Tables: make(map[string]string)}
	for _, step := range s.settings.Steps {
		var lastID string
		for _, q := range step.Queries {
			s.logger.Info("running table query", "step", step.Name)
			id, err := s.queries.Run(ctx, q, s.settings.Database, outputLocation)
			if err != nil {
				return fail(fmt.Sprintf("table step %s failed", step.Name), err)
			}
			lastID = id
		}
		if step.Output == "" || lastID == "" {
			continue
		}
		dst := path.Join(s.settings.Key, "meta."+step.Output+".csv")
		if err := s.objects.Rename(ctx, s.settings.Bucket, s.tmpPrefix()+lastID+".csv", dst); err != nil {
			return fail(fmt.Sprintf("failed to publish table %s", step.Output), err)
		}
		build.Tables[step.Output] = fmt.Sprintf("s3://%s/%s", s.settings.Bucket, dst)
	}

	n, err := s.objects.DeletePrefix(ctx, s.settings.Bucket, s.tmpPrefix())
	if err != nil {
		return fail("failed to clean query output", err)
	}
	s.logger.Info("removed query output", "objects", n)

	if s.followUp != nil {
		item := domain.WorkItem{
			ID:         "gba_table",
			Attributes: domain.NewAttributes("bucket", s.settings.Bucket, "key", s.settings.Key),
		}
		ref, err := s.followUp.Dispatch(ctx, item)
		if err != nil {
			return fail("failed to submit table job", err)
		}
		build.JobRef = ref
	}

	s.logger.Info("tables built", "tables", len(build.Tables), "job_ref", build.JobRef)
	return build, nil
}

// Task returns the build as a scheduler task, or nil when unscheduled.
func (s *TableService) Task() domain.Task {
	if s.settings.Schedule == "" {
		return nil
	}
	return &tableTask{service: s}
}

type tableTask struct {
	service *TableService
}

func (t *tableTask) Name() string     { return "tables" }
func (t *tableTask) Schedule() string { return t.service.settings.Schedule }

func (t *tableTask) Run(ctx context.Context) error {
	_, err := t.service.Build(ctx)
	return err
}
