package tracing

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestInitTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer("waphl-test", &buf, logger)
	require.NoError(t, err)

	_, span := otel.Tracer("waphl-test").Start(context.Background(), "detector.Run")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "detector.Run"`)
	assert.Contains(t, buf.String(), "waphl-test")
}

func TestInitTracerWithoutExport(t *testing.T) {
	shutdown, err := InitTracer("waphl-test", io.Discard, logger)
	require.NoError(t, err)

	_, span := otel.Tracer("waphl-test").Start(context.Background(), "noop")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
