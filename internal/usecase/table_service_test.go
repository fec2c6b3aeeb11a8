package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain/mocks"
)

type fakeCrawler struct {
	ran []string
	err error
}

func (c *fakeCrawler) Run(_ context.Context, name string) error {
	c.ran = append(c.ran, name)
	return c.err
}

type fakeQueries struct {
	queries []string
	outputs []string
	failOn  int
}

func (q *fakeQueries) Run(_ context.Context, query, database, output string) (string, error) {
	q.queries = append(q.queries, query)
	q.outputs = append(q.outputs, output)
	if len(q.queries) == q.failOn {
		return "", errors.New("query FAILED: table not found")
	}
	return fmt.Sprintf("q%d", len(q.queries)), nil
}

type fakeObjects struct {
	renamed map[string]string
	deleted []string
}

func (o *fakeObjects) Rename(_ context.Context, bucket, src, dst string) error {
	o.renamed[src] = dst
	return nil
}

func (o *fakeObjects) DeletePrefix(_ context.Context, bucket, prefix string) (int, error) {
	o.deleted = append(o.deleted, bucket+"/"+prefix)
	return 3, nil
}

func TestTableBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	followUp := mocks.NewMockDispatcher(ctrl)
	crawler := &fakeCrawler{}
	queries := &fakeQueries{}
	objects := &fakeObjects{renamed: map[string]string{}}

	svc := NewTableService(TableSettings{
		Crawler:  "waphl-results",
		Database: "results",
		Bucket:   "waphl-results",
		Key:      "/tables/",
	}, crawler, queries, objects, followUp, logger)

	followUp.EXPECT().Dispatch(gomock.Any(), domain.WorkItem{
		ID:         "gba_table",
		Attributes: domain.NewAttributes("bucket", "waphl-results", "key", "tables"),
	}).Return("job-1", nil)

	build, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"waphl-results"}, crawler.ran)
	// meta_alt has two statements, every other step one.
	assert.Len(t, queries.queries, 7)
	assert.Equal(t, "DROP TABLE IF EXISTS meta_alt", queries.queries[0])
	for _, out := range queries.outputs {
		assert.Equal(t, "s3://waphl-results/tables/tmp/", out)
	}

	assert.Equal(t, map[string]string{
		"tables/tmp/q3.csv": "tables/meta.raw.csv",
		"tables/tmp/q4.csv": "tables/meta.clean.csv",
		"tables/tmp/q5.csv": "tables/meta.gba.csv",
		"tables/tmp/q6.csv": "tables/meta.fastq.csv",
		"tables/tmp/q7.csv": "tables/meta.fasta.csv",
	}, objects.renamed)
	assert.Equal(t, []string{"waphl-results/tables/tmp/"}, objects.deleted)

	assert.Equal(t, "job-1", build.JobRef)
	assert.Equal(t, "s3://waphl-results/tables/meta.gba.csv", build.Tables["gba"])
	assert.Len(t, build.Tables, 5)
}

func TestTableBuildStopsOnQueryFailure(t *testing.T) {
	queries := &fakeQueries{failOn: 4}
	objects := &fakeObjects{renamed: map[string]string{}}

	svc := NewTableService(TableSettings{Database: "results", Bucket: "b", Key: "tables"}, &fakeCrawler{}, queries, objects, nil, logger)

	_, err := svc.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table step clean failed")
	assert.Len(t, objects.renamed, 1)
	assert.Empty(t, objects.deleted)
}

func TestTableBuildCrawlerFailure(t *testing.T) {
	queries := &fakeQueries{}
	svc := NewTableService(TableSettings{Crawler: "c", Bucket: "b", Key: "k"}, &fakeCrawler{err: errors.New("crawl FAILED")}, queries, &fakeObjects{}, nil, logger)

	_, err := svc.Build(context.Background())
	assert.Error(t, err)
	assert.Empty(t, queries.queries)
}

func TestTableTask(t *testing.T) {
	svc := NewTableService(TableSettings{}, nil, nil, nil, nil, logger)
	assert.Nil(t, svc.Task())

	svc = NewTableService(TableSettings{Schedule: "0 0 6 * * *"}, nil, nil, nil, nil, logger)
	task := svc.Task()
	require.NotNil(t, task)
	assert.Equal(t, "tables", task.Name())
	assert.Equal(t, "0 0 6 * * *", task.Schedule())
}
