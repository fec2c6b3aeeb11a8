package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// sortableTime is fixed width so started_at orders lexically.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// RunRepository persists run reports as JSON rows.
type RunRepository struct {
	db *sql.DB
}

var _ domain.RunRepository = (*RunRepository)(nil)

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Save(ctx context.Context, report *domain.Report) error {
	if err := report.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report %s: %w", report.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO run_reports(id, pipeline, status, started_at, report)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET status = excluded.status, report = excluded.report;`,
		report.ID, report.Pipeline, string(report.Status),
		report.StartTime.UTC().Format(sortableTime), string(raw),
	)
	if err != nil {
		return fmt.Errorf("save run report %s: %w", report.ID, err)
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, pipeline, runID string) (*domain.Report, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		"SELECT report FROM run_reports WHERE pipeline = ? AND id = ?;", pipeline, runID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRunNotFound, pipeline, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("read run report %s/%s: %w", pipeline, runID, err)
	}
	var report domain.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("decode run report %s/%s: %w", pipeline, runID, err)
	}
	return &report, nil
}

// ListByPipeline returns reports newest first.
func (r *RunRepository) ListByPipeline(ctx context.Context, pipeline string, page, pageSize int) ([]*domain.Report, error) {
	if page < 1 || pageSize < 1 {
		return []*domain.Report{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT report FROM run_reports
WHERE pipeline = ?
ORDER BY started_at DESC, id ASC
LIMIT ? OFFSET ?;`, pipeline, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list run reports for %s: %w", pipeline, err)
	}
	defer rows.Close()

	reports := []*domain.Report{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan run report: %w", err)
		}
		var report domain.Report
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, fmt.Errorf("decode run report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}
