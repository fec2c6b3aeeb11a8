package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// KnownIDStore is the processed-id cache of one pipeline.
type KnownIDStore struct {
	db       *sql.DB
	pipeline string
}

var _ domain.WritableIDStore = (*KnownIDStore)(nil)

func NewKnownIDStore(db *sql.DB, pipeline string) *KnownIDStore {
	return &KnownIDStore{db: db, pipeline: pipeline}
}

func (s *KnownIDStore) KnownIDs(ctx context.Context) (domain.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT item_id FROM known_ids WHERE pipeline = ?;", s.pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: read known ids: %v", domain.ErrUpstreamListing, err)
	}
	defer rows.Close()

	ids := domain.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan known id: %v", domain.ErrUpstreamListing, err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read known ids: %v", domain.ErrUpstreamListing, err)
	}
	return ids, nil
}

// Add records ids; ids already present are left unchanged.
func (s *KnownIDStore) Add(ctx context.Context, ids ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty id", domain.ErrMalformedItem)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO known_ids(pipeline, item_id, created_at) VALUES(?, ?, ?);",
			s.pipeline, id, now,
		); err != nil {
			return fmt.Errorf("insert known id %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit known ids: %w", err)
	}
	return nil
}
