package obs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "chatty", App: "netwatch/test"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("plain")

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
	}))
	WithTrace(ctx, base).Info("traced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Context)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[1].ContextMap()["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entries[1].ContextMap()["span_id"])

	assert.Nil(t, WithTrace(ctx, nil))
}

func TestNewLogger_WritesJSONToOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netwatch.log")
	l, err := NewLogger(LogConfig{Level: "debug", Output: path, Sampling: true, App: "netwatch/test", Env: "ci"})
	require.NoError(t, err)
	l.Debug("tick done", zap.Int("endpoints", 3))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line))
	assert.Equal(t, "tick done", line["msg"])
	assert.Equal(t, "netwatch/test", line["service"])
	assert.Equal(t, "ci", line["env"])
	assert.NotContains(t, line, "version")
	assert.Contains(t, line, "ts")
}

func TestTraceFields_Unsampled(t *testing.T) {
	assert.Nil(t, TraceFields(context.Background()))

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid, SpanID: sid,
	}))
	fs := TraceFields(ctx)
	require.Len(t, fs, 3)
	assert.Equal(t, "trace_sampled", fs[2].Key)
}
