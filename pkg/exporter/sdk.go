package exporter

import (
	"context"

	"github.com/hyp3rd/ewrap"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hyp3rd/otlpmetrics/pkg/config"
	"github.com/hyp3rd/otlpmetrics/pkg/snapshot"
)

// ErrExportFailed is returned to the SDK when a collection could not be delivered.
// The cause has already been logged.
var ErrExportFailed = ewrap.New("otlp metrics export failed")

// MetricExporter adapts an Exporter to sdkmetric.Exporter for use with a
// PeriodicReader.
type MetricExporter struct {
	exp *Exporter
}

var _ sdkmetric.Exporter = (*MetricExporter)(nil)

// NewMetricExporter builds an Exporter and wraps it for the SDK.
func NewMetricExporter(ctx context.Context, opts ...Option) (*MetricExporter, error) {
	exp, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &MetricExporter{exp: exp}, nil
}

// SDK wraps e for the OpenTelemetry SDK. Both share the same lifecycle.
func (e *Exporter) SDK() *MetricExporter {
	return &MetricExporter{exp: e}
}

// Exporter returns the wrapped Exporter.
func (m *MetricExporter) Exporter() *Exporter {
	return m.exp
}

// Temporality implements sdkmetric.Exporter following the configured preference.
func (m *MetricExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return temporalityFor(m.exp.cfg.TemporalityPreference(), kind)
}

// Aggregation implements sdkmetric.Exporter.
func (*MetricExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

// Export implements sdkmetric.Exporter.
func (m *MetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if m.exp.Export(ctx, snapshot.FromResourceMetrics(rm)) != Success {
		return ErrExportFailed
	}

	return nil
}

// ForceFlush implements sdkmetric.Exporter.
func (m *MetricExporter) ForceFlush(ctx context.Context) error {
	return m.exp.ForceFlush(ctx)
}

// Shutdown implements sdkmetric.Exporter.
func (m *MetricExporter) Shutdown(ctx context.Context) error {
	return m.exp.Shutdown(ctx)
}

func temporalityFor(pref config.TemporalityPreference, kind sdkmetric.InstrumentKind) metricdata.Temporality {
	switch pref {
	case config.TemporalityDelta:
		switch kind {
		case sdkmetric.InstrumentKindCounter,
			sdkmetric.InstrumentKindHistogram,
			sdkmetric.InstrumentKindObservableCounter:
			return metricdata.DeltaTemporality
		default:
			return metricdata.CumulativeTemporality
		}
	case config.TemporalityLowMemory:
		switch kind {
		case sdkmetric.InstrumentKindCounter, sdkmetric.InstrumentKindHistogram:
			return metricdata.DeltaTemporality
		default:
			return metricdata.CumulativeTemporality
		}
	default:
		return metricdata.CumulativeTemporality
	}
}
