package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHttpDispatcherPostsItem(t *testing.T) {
	var got domain.WorkItem
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("accepted-42\n"))
	}))
	defer srv.Close()

	d := NewHttpDispatcher("", srv.URL+"/hooks/${workflow}", logger)
	item := domain.WorkItem{ID: "a", Attributes: domain.NewAttributes("workflow", "phoenix")}

	ref, err := d.Dispatch(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "accepted-42", ref)
	assert.Equal(t, "/hooks/phoenix", path)
	assert.Equal(t, item, got)
}

func TestHttpDispatcherClassifiesStatus(t *testing.T) {
	status := http.StatusBadGateway
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	d := NewHttpDispatcher(http.MethodPut, srv.URL, logger)

	_, err := d.Dispatch(context.Background(), domain.WorkItem{ID: "a"})
	assert.ErrorIs(t, err, domain.ErrRetryable)

	status = http.StatusUnprocessableEntity
	_, err = d.Dispatch(context.Background(), domain.WorkItem{ID: "a"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRetryable)
}

func TestHttpDispatcherMissingAttribute(t *testing.T) {
	d := NewHttpDispatcher("", "http://127.0.0.1:1/${run}", logger)
	_, err := d.Dispatch(context.Background(), domain.WorkItem{ID: "a"})
	assert.ErrorIs(t, err, domain.ErrMalformedItem)
}
