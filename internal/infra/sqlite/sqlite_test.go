package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "waphl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waphl.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(context.Background(), "")
	assert.Error(t, err)
}

func TestKnownIDStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fastq := NewKnownIDStore(db, "fastq")
	terra := NewKnownIDStore(db, "terra/prod")

	ids, err := fastq.KnownIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, fastq.Add(ctx, "S1_R1.fastq.gz", "S1_R2.fastq.gz"))
	require.NoError(t, fastq.Add(ctx, "S1_R1.fastq.gz"))
	require.NoError(t, terra.Add(ctx, "sub-1"))

	ids, err = fastq.KnownIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1_R1.fastq.gz", "S1_R2.fastq.gz"}, ids.Sorted())

	assert.ErrorIs(t, fastq.Add(ctx, ""), domain.ErrMalformedItem)
}

func TestRunRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRunRepository(db)
	base := time.Date(2024, 11, 21, 10, 0, 0, 0, time.UTC)

	save := func(id string, start time.Time) {
		require.NoError(t, repo.Save(ctx, &domain.Report{ID: id, Pipeline: "fastq", StartTime: start, Status: domain.RunStatusSuccess}))
	}
	save("r1", base)
	save("r2", base.Add(500*time.Millisecond))
	save("r3", base.Add(time.Hour))

	page, err := repo.ListByPipeline(ctx, "fastq", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "r3", page[0].ID)
	assert.Equal(t, "r2", page[1].ID)

	page, err = repo.ListByPipeline(ctx, "fastq", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r1", page[0].ID)

	updated := &domain.Report{ID: "r1", Pipeline: "fastq", StartTime: base, Status: domain.RunStatusPartial}
	require.NoError(t, repo.Save(ctx, updated))
	got, err := repo.Get(ctx, "fastq", "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)

	_, err = repo.Get(ctx, "terra", "r1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
