package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
)

const attributeCountWithTrace = 3

func TestWithTraceAddsSpanContext(t *testing.T) {
	t.Parallel()

	ctx, span := trace.NewTracerProvider().Tracer("test").Start(context.Background(), "span")
	defer span.End()

	attrs := withTrace(ctx, []attribute.KeyValue{attribute.String("foo", "bar")})
	if len(attrs) < attributeCountWithTrace {
		t.Fatalf("expected trace attributes plus payload, got %d", len(attrs))
	}

	if attrs[0].Key != "trace_id" {
		t.Fatalf("expected trace_id first, got %s", attrs[0].Key)
	}

	if attrs[1].Key != "span_id" {
		t.Fatalf("expected span_id second, got %s", attrs[1].Key)
	}
}

func TestWithTraceNoSpan(t *testing.T) {
	t.Parallel()

	attrs := withTrace(context.Background(), []attribute.KeyValue{attribute.String("foo", "bar")})
	if len(attrs) != 1 {
		t.Fatalf("expected only original attrs, got %d", len(attrs))
	}
}

func TestSlogAdapterWritesTraceAttributes(t *testing.T) {
	t.Parallel()

	ctx, span := trace.NewTracerProvider().Tracer("test").Start(context.Background(), "span")
	defer span.End()

	var buf bytes.Buffer

	adapter := NewSlogAdapter(slogLogger(&buf))

	adapter.Warn(ctx, "hello", attribute.String("foo", "bar"))

	var entry map[string]any

	err := json.Unmarshal(buf.Bytes(), &entry)
	if err != nil {
		t.Fatalf("unmarshal slog output: %v", err)
	}

	if entry["trace_id"] == nil {
		t.Fatalf("expected trace_id attribute, got %v", entry)
	}

	if entry["level"] != "WARN" {
		t.Fatalf("expected WARN level, got %v", entry["level"])
	}
}

func slogLogger(buf *bytes.Buffer) *slog.Logger {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	return slog.New(handler)
}

type recordingAdapter struct {
	levels []string
}

func (r *recordingAdapter) Debug(context.Context, string, ...attribute.KeyValue) {
	r.levels = append(r.levels, "debug")
}

func (r *recordingAdapter) Info(context.Context, string, ...attribute.KeyValue) {
	r.levels = append(r.levels, "info")
}

func (r *recordingAdapter) Warn(context.Context, string, ...attribute.KeyValue) {
	r.levels = append(r.levels, "warn")
}

func (r *recordingAdapter) Error(context.Context, error, string, ...attribute.KeyValue) {
	r.levels = append(r.levels, "error")
}

func TestLevelFilterKeepsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  []string
	}{
		{level: "error", want: []string{"error"}},
		{level: "warn", want: []string{"warn", "error"}},
		{level: "info", want: []string{"debug", "info", "warn", "error"}},
	}

	for _, tc := range tests {
		rec := &recordingAdapter{}
		adapter := applyLevelFilter(rec, tc.level)

		adapter.Debug(context.Background(), "d")
		adapter.Info(context.Background(), "i")
		adapter.Warn(context.Background(), "w")
		adapter.Error(context.Background(), nil, "e")

		if strings.Join(rec.levels, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("level %s: expected %v, got %v", tc.level, tc.want, rec.levels)
		}
	}
}

func TestSamplingNeverDropsErrors(t *testing.T) {
	t.Parallel()

	rec := &recordingAdapter{}
	adapter := applySampling(rec, 0)

	adapter.Info(context.Background(), "dropped")
	adapter.Error(context.Background(), errors.New("boom"), "kept")

	if len(rec.levels) != 1 || rec.levels[0] != "error" {
		t.Fatalf("expected only the error line, got %v", rec.levels)
	}
}

func TestZapAdapterAddsPhaseAndError(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Error(context.Background(), errors.New("boom"), "export failed", Phase(PhaseSendBytes))

	entries := logs.FilterMessage("export failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["phase"] != PhaseSendBytes {
		t.Fatalf("expected phase field, got %v", fields)
	}

	if fields["error"] != "boom" {
		t.Fatalf("expected error field, got %v", fields)
	}
}

func TestFromConfigNoopByDefault(t *testing.T) {
	t.Parallel()

	adapter := FromConfig(config.LoggingConfig{})
	if _, ok := adapter.(NoopAdapter); !ok {
		t.Fatalf("expected noop adapter, got %T", adapter)
	}
}
