// internal/infra/etcd/etcd_run_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	RunHistoryDir = KeyRoot + "runs/"
)

type etcdRunRepository struct {
	kv     clientv3.KV
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdRunRepository creates a repository for run reports backed by etcd.
func NewEtcdRunRepository(kv clientv3.KV, logger *slog.Logger) domain.RunRepository {
	return &etcdRunRepository{
		kv:     kv,
		logger: logger.With("component", "etcd-run-repo"),
		tracer: otel.Tracer("waphl-etcd-run-repo"),
	}
}

// Save persists a single report to etcd.
// The key is structured as /waphl/runs/{pipeline}/{runID}.
func (r *etcdRunRepository) Save(ctx context.Context, report *domain.Report) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveRun")
	defer span.End()

	if err := report.Validate(); err != nil {
		return err
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal run report")
		return fmt.Errorf("failed to marshal run report %s to JSON: %w", report.ID, err)
	}

	key := pipelineDir(RunHistoryDir, report.Pipeline) + report.ID
	span.SetAttributes(
		attribute.String("run.id", report.ID),
		attribute.String("pipeline", report.Pipeline),
		attribute.String("etcd.key", key),
	)

	if _, err := r.kv.Put(ctx, key, string(reportJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put run report to etcd")
		return fmt.Errorf("failed to save run report %s to etcd: %w", report.ID, err)
	}
	return nil
}

// Get retrieves a single run report.
func (r *etcdRunRepository) Get(ctx context.Context, pipeline, runID string) (*domain.Report, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetRun")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("run.id", runID),
	)

	resp, err := r.kv.Get(ctx, pipelineDir(RunHistoryDir, pipeline)+runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get run report from etcd")
		return nil, fmt.Errorf("failed to get run report %s/%s from etcd: %w", pipeline, runID, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRunNotFound, pipeline, runID)
	}

	var report domain.Report
	if err := json.Unmarshal(resp.Kvs[0].Value, &report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal run report")
		return nil, fmt.Errorf("failed to unmarshal run report %s/%s from JSON: %w", pipeline, runID, err)
	}
	return &report, nil
}

// ListByPipeline retrieves run reports of a pipeline, newest first, with
// pagination.
func (r *etcdRunRepository) ListByPipeline(ctx context.Context, pipeline string, page, pageSize int) ([]*domain.Report, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListRuns")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline", pipeline),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	resp, err := r.kv.Get(ctx, pipelineDir(RunHistoryDir, pipeline),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list run reports from etcd")
		return nil, fmt.Errorf("failed to list run reports for %s from etcd: %w", pipeline, err)
	}

	reports := make([]*domain.Report, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var report domain.Report
		if err := json.Unmarshal(kv.Value, &report); err != nil {
			r.logger.Warn("failed to unmarshal run report from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		reports = append(reports, &report)
	}
	// Re-saving a report keeps its create revision, so order by start time.
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartTime.After(reports[j].StartTime)
	})

	start := (page - 1) * pageSize
	if page < 1 || pageSize < 1 || start >= len(reports) {
		return []*domain.Report{}, nil
	}
	end := min(start+pageSize, len(reports))
	span.SetAttributes(attribute.Int("records_returned", end-start))
	return reports[start:end], nil
}
