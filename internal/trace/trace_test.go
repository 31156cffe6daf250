package trace_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"coinpulse/internal/trace"
)

// Tests share the package-level tracer, so they don't run in parallel.

func TestStartSpanDisabledIsNoop(t *testing.T) {
	require.NoError(t, trace.Init(t.Context(), trace.Options{Enabled: false}))
	require.False(t, trace.Enabled())

	ctx, span := trace.StartSpan(t.Context(), "noop")
	span.End()

	_, _, ok := trace.TraceFields(ctx)
	require.False(t, ok)
}

func TestStartSpanExports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, trace.Init(t.Context(), trace.Options{Enabled: true, ServiceName: "coinpulse-test", Writer: &buf}))
	require.True(t, trace.Enabled())

	ctx, span := trace.StartSpan(t.Context(), "fetch")
	traceID, spanID, ok := trace.TraceFields(ctx)
	span.End()

	require.True(t, ok)
	require.NotEmpty(t, traceID)
	require.NotEmpty(t, spanID)

	require.NoError(t, trace.Shutdown(context.Background()))
	require.Contains(t, buf.String(), `"Name":"fetch"`)
	require.False(t, trace.Enabled())
}
