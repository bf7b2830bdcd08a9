package exporter

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
	"github.com/hyp3rd/otlpmetrics/pkg/transport"
)

const meterName = "github.com/hyp3rd/otlpmetrics/exporter"

// telemetry records the exporter's own metrics on a caller-supplied provider.
type telemetry struct {
	duration metric.Float64Histogram
	exports  metric.Int64Counter
	failures metric.Int64Counter
}

func newTelemetry(provider metric.MeterProvider) (*telemetry, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}

	meter := provider.Meter(meterName, metric.WithInstrumentationVersion(constants.Version))

	duration, err := meter.Float64Histogram(
		"otlpmetrics.exporter.request.duration",
		metric.WithDescription("Duration of individual HTTP attempts to the collector"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create request duration histogram")
	}

	exports, err := meter.Int64Counter(
		"otlpmetrics.exporter.exports",
		metric.WithDescription("Export calls by result"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create exports counter")
	}

	failures, err := meter.Int64Counter(
		"otlpmetrics.exporter.failures",
		metric.WithDescription("Failed export calls by phase"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, ewrap.Wrap(err, "create failures counter")
	}

	return &telemetry{
		duration: duration,
		exports:  exports,
		failures: failures,
	}, nil
}

// ObserveAttempt implements transport.Observer.
func (t *telemetry) ObserveAttempt(ctx context.Context, statusCode int, elapsed time.Duration) {
	t.duration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.Int("http.response.status_code", statusCode)),
	)
}

// ObserveResult implements transport.Observer.
func (t *telemetry) ObserveResult(ctx context.Context, outcome transport.Outcome) {
	t.exports.Add(ctx, 1, metric.WithAttributes(attribute.String("result", outcome.Result.String())))

	if outcome.Result == transport.Failure {
		t.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", outcome.Phase)))
	}
}
