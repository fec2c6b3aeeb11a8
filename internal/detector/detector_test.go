package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain/mocks"
)

func newTestDetector() (*Detector, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(logger), &buf
}

// recordingDispatcher remembers every dispatched id and fails the ids in fail.
type recordingDispatcher struct {
	mu   sync.Mutex
	ids  []string
	fail map[string]error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, item domain.WorkItem) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, item.ID)
	if err := r.fail[item.ID]; err != nil {
		return "", err
	}
	return "ref-" + item.ID, nil
}

func item(id string, kv ...string) domain.WorkItem {
	return domain.WorkItem{ID: id, Attributes: domain.NewAttributes(kv...)}
}

func TestDetectAndDispatchSkipsKnownIDs(t *testing.T) {
	d, _ := newTestDetector()
	rec := &recordingDispatcher{}

	items := []domain.WorkItem{item("x"), item("y"), item("z")}
	res := d.DetectAndDispatch(context.Background(), items, domain.NewIDSet("x"), Options{Limit: 10}, rec)

	assert.Equal(t, []string{"y", "z"}, rec.ids)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, domain.OutcomeDispatched, res.Outcomes[0].Status)
	assert.Equal(t, "ref-y", res.Outcomes[0].Ref)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, domain.Skip{ItemID: "x", Reason: domain.SkipCached}, res.Skipped[0])
}

func TestDetectAndDispatchCapsBatch(t *testing.T) {
	d, _ := newTestDetector()
	rec := &recordingDispatcher{}

	var items []domain.WorkItem
	for i := 0; i < 25; i++ {
		items = append(items, item(fmt.Sprintf("run-%02d", i)))
	}
	res := d.DetectAndDispatch(context.Background(), items, nil, Options{Limit: 10}, rec)

	assert.Len(t, rec.ids, 10)
	assert.Len(t, res.Dropped, 15)
	assert.Equal(t, "run-00", rec.ids[0])
	assert.Equal(t, "run-09", rec.ids[9])
	for _, s := range res.Dropped {
		assert.Equal(t, domain.SkipOverLimit, s.Reason)
	}
}

func TestDetectAndDispatchDedupesFirstOccurrence(t *testing.T) {
	d, _ := newTestDetector()
	rec := &recordingDispatcher{}

	items := []domain.WorkItem{item("a", "ts", "1"), item("a", "ts", "2")}
	res := d.DetectAndDispatch(context.Background(), items, domain.NewIDSet(), Options{}, rec)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, []string{"a"}, rec.ids)
	assert.Equal(t, "1", res.Outcomes[0].Item.Attributes.Value("ts"))
}

func TestDetectAndDispatchDedupeWithRecencyKeepsLatest(t *testing.T) {
	d, _ := newTestDetector()
	rec := &recordingDispatcher{}

	items := []domain.WorkItem{item("a", "ts", "1"), item("a", "ts", "2")}
	opts := Options{Selector: MostRecentPerEntity{Time: Timestamp{Attr: "ts"}}}
	res := d.DetectAndDispatch(context.Background(), items, domain.NewIDSet(), opts, rec)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "2", res.Outcomes[0].Item.Attributes.Value("ts"))
}

func TestDetectAndDispatchIsolatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	gomock.InOrder(
		dispatcher.EXPECT().Dispatch(gomock.Any(), item("a")).Return("job-a", nil),
		dispatcher.EXPECT().Dispatch(gomock.Any(), item("b")).Return("", errors.New("access denied")),
		dispatcher.EXPECT().Dispatch(gomock.Any(), item("c")).Return("job-c", nil),
	)

	d, _ := newTestDetector()
	items := []domain.WorkItem{item("a"), item("b"), item("c")}
	res := d.DetectAndDispatch(context.Background(), items, nil, Options{}, dispatcher)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, domain.OutcomeDispatched, res.Outcomes[0].Status)
	assert.Equal(t, domain.OutcomeFailed, res.Outcomes[1].Status)
	assert.Contains(t, res.Outcomes[1].Error, "access denied")
	assert.False(t, res.Outcomes[1].Retryable)
	assert.Equal(t, domain.OutcomeDispatched, res.Outcomes[2].Status)
	assert.Equal(t, "job-c", res.Outcomes[2].Ref)
}

func TestDetectAndDispatchRetriesRetryableErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	gomock.InOrder(
		dispatcher.EXPECT().Dispatch(gomock.Any(), item("a")).Return("", fmt.Errorf("%w: throttled", domain.ErrRetryable)),
		dispatcher.EXPECT().Dispatch(gomock.Any(), item("a")).Return("job-a", nil),
	)

	d, _ := newTestDetector()
	opts := Options{Retry: RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}}
	res := d.DetectAndDispatch(context.Background(), []domain.WorkItem{item("a")}, nil, opts, dispatcher)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, domain.OutcomeDispatched, res.Outcomes[0].Status)
	assert.Equal(t, 2, res.Outcomes[0].Attempts)
}

type blockingDispatcher struct{}

func (blockingDispatcher) Dispatch(ctx context.Context, _ domain.WorkItem) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDetectAndDispatchTimeoutIsRetryableFailure(t *testing.T) {
	d, _ := newTestDetector()
	opts := Options{CallTimeout: 10 * time.Millisecond}
	res := d.DetectAndDispatch(context.Background(), []domain.WorkItem{item("slow")}, nil, opts, blockingDispatcher{})

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, domain.OutcomeFailed, res.Outcomes[0].Status)
	assert.True(t, res.Outcomes[0].Retryable)
	assert.Equal(t, 1, res.Outcomes[0].Attempts)
}

func TestDetectAndDispatchDryRunSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	d, _ := newTestDetector()
	res := d.DetectAndDispatch(context.Background(), []domain.WorkItem{item("a"), item("b")}, nil, Options{DryRun: true}, dispatcher)

	require.Len(t, res.Outcomes, 2)
	for _, o := range res.Outcomes {
		assert.Equal(t, domain.OutcomePlanned, o.Status)
	}
}

func TestDetectAndDispatchConcurrentKeepsBatchOrder(t *testing.T) {
	d, _ := newTestDetector()
	rec := &recordingDispatcher{fail: map[string]error{"c": errors.New("boom")}}

	var items []domain.WorkItem
	for _, id := range []string{"e", "d", "c", "b", "a"} {
		items = append(items, item(id))
	}
	res := d.DetectAndDispatch(context.Background(), items, nil, Options{Concurrency: 3}, rec)

	require.Len(t, res.Outcomes, 5)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, id, res.Outcomes[i].Item.ID)
	}
	assert.Equal(t, domain.OutcomeFailed, res.Outcomes[2].Status)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, rec.ids)
}

func TestDetectAndDispatchLogsMalformedItems(t *testing.T) {
	d, buf := newTestDetector()
	rec := &recordingDispatcher{}

	items := []domain.WorkItem{item("ok", "ts", "10"), item("bad", "ts", "yesterday")}
	opts := Options{Order: OrderNewest, OrderTime: Timestamp{Attr: "ts"}}
	res := d.DetectAndDispatch(context.Background(), items, nil, opts, rec)

	assert.Equal(t, []string{"ok"}, rec.ids)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, domain.SkipMalformed, res.Skipped[0].Reason)
	assert.Contains(t, buf.String(), "skipping malformed item")
	assert.Contains(t, buf.String(), `"item_id":"bad"`)
}
