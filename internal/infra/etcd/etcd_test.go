package etcd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

func TestKnownIDStoreRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store := NewEtcdKnownIDStore(kv, "terra/prod", testLogger)
	other := NewEtcdKnownIDStore(kv, "terra", testLogger)

	ids, err := store.KnownIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Add(context.Background(), "sub-1", "s3://bucket/run/"))
	require.NoError(t, other.Add(context.Background(), "sub-9"))

	ids, err = store.KnownIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/run/", "sub-1"}, ids.Sorted())

	ids, err = other.KnownIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sub-9"}, ids.Sorted())
}

func TestKnownIDStoreFailureIsUpstreamError(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("etcdserver: request timed out")

	_, err := NewEtcdKnownIDStore(kv, "p", testLogger).KnownIDs(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamListing)
}

func report(pipeline, id string, start time.Time) *domain.Report {
	return &domain.Report{ID: id, Pipeline: pipeline, StartTime: start, Status: domain.RunStatusSuccess}
}

func TestRunRepositoryListsNewestFirst(t *testing.T) {
	repo := NewEtcdRunRepository(newFakeKV(), testLogger)
	ctx := context.Background()
	base := time.Date(2024, 11, 21, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, report("fastq", "b", base.Add(2*time.Hour))))
	require.NoError(t, repo.Save(ctx, report("fastq", "a", base.Add(3*time.Hour))))
	require.NoError(t, repo.Save(ctx, report("fastq", "c", base)))
	require.NoError(t, repo.Save(ctx, report("fastq/other", "z", base)))

	page1, err := repo.ListByPipeline(ctx, "fastq", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "a", page1[0].ID)
	assert.Equal(t, "b", page1[1].ID)

	page2, err := repo.ListByPipeline(ctx, "fastq", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "c", page2[0].ID)

	page3, err := repo.ListByPipeline(ctx, "fastq", 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page3)
}

func TestRunRepositoryGet(t *testing.T) {
	repo := NewEtcdRunRepository(newFakeKV(), testLogger)
	ctx := context.Background()

	r := report("terra/prod", "run-1", time.Now().UTC())
	r.Outcomes = []domain.Outcome{{Item: domain.WorkItem{ID: "x", Attributes: domain.NewAttributes("k", "v")}, Status: domain.OutcomeDispatched, Ref: "job-1", Attempts: 1}}
	require.NoError(t, repo.Save(ctx, r))

	got, err := repo.Get(ctx, "terra/prod", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.Outcomes[0].Ref)
	assert.Equal(t, "v", got.Outcomes[0].Item.Attributes.Value("k"))

	_, err = repo.Get(ctx, "terra/prod", "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunRepositoryRejectsInvalidReport(t *testing.T) {
	repo := NewEtcdRunRepository(newFakeKV(), testLogger)
	assert.Error(t, repo.Save(context.Background(), &domain.Report{Pipeline: "p"}))
}
