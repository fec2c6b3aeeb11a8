package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type httpDispatcher struct {
	client *http.Client
	method string
	url    string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHttpDispatcher posts every item as JSON to a webhook. url may reference
// item attributes as ${name}.
func NewHttpDispatcher(method, url string, logger *slog.Logger) domain.Dispatcher {
	if method == "" {
		method = http.MethodPost
	}
	return &httpDispatcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		method: method,
		url:    url,
		logger: logger.With("component", "http-dispatcher"),
		tracer: otel.Tracer("waphl-http-dispatcher"),
	}
}

// Dispatch performs a single HTTP request. 5xx responses and timeouts are
// retryable; 4xx are not.
func (d *httpDispatcher) Dispatch(ctx context.Context, item domain.WorkItem) (string, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.http.Dispatch", trace.WithAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("http.method", d.method),
	))
	defer span.End()

	target, err := item.Expand(d.url)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal item %s: %w", item.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, d.method, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := d.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http request failed")
		return "", fmt.Errorf("%w: http request failed: %w", domain.ErrRetryable, err)
	}
	defer resp.Body.Close()

	// Read a small portion of the body as the dispatch reference.
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, "server error")
		return "", fmt.Errorf("%w: http request returned 5xx server error: %s", domain.ErrRetryable, resp.Status)
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, "client error")
		return "", fmt.Errorf("http request returned 4xx client error: %s", resp.Status)
	}

	ref := strings.TrimSpace(string(bodyBytes))
	if ref == "" {
		ref = resp.Status
	}
	d.logger.Info("dispatched item", "item_id", item.ID, "status", resp.StatusCode)
	return ref, nil
}
