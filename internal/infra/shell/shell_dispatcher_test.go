package shell

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestEnviron(t *testing.T) {
	item := domain.WorkItem{ID: "sub-1", Attributes: domain.NewAttributes("entity_type", "run_01", "source-uri", "s3://b/k")}
	assert.Equal(t, []string{"ITEM_ID=sub-1", "ITEM_ENTITY_TYPE=run_01", "ITEM_SOURCE_URI=s3://b/k"}, Environ(item))
}

func TestShellDispatcherPassesItem(t *testing.T) {
	requireBash(t)
	d := NewShellDispatcher(`echo "$ITEM_ID:$ITEM_WORKFLOW"`, logger)

	ref, err := d.Dispatch(context.Background(), domain.WorkItem{ID: "x", Attributes: domain.NewAttributes("workflow", "phoenix")})
	require.NoError(t, err)
	assert.Equal(t, "x:phoenix", ref)
}

func TestShellDispatcherFailure(t *testing.T) {
	requireBash(t)
	d := NewShellDispatcher(`echo "no such run" >&2; exit 3`, logger)

	_, err := d.Dispatch(context.Background(), domain.WorkItem{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such run")
}

func TestShellDispatcherHonoursContext(t *testing.T) {
	requireBash(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewShellDispatcher("sleep 5", logger).Dispatch(ctx, domain.WorkItem{ID: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
