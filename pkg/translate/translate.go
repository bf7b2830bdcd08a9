// Package translate converts metric snapshots into OTLP export requests.
package translate

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/hyp3rd/otlpmetrics/pkg/logging"
	"github.com/hyp3rd/otlpmetrics/pkg/snapshot"
)

type resourceGroup struct {
	pb     *metricspb.ResourceMetrics
	scopes map[string]*metricspb.ScopeMetrics
}

// Translate groups snapshots by resource, then by scope, keeping the order
// in which each group first appears. Invalid attributes are dropped one by one
// and reported through logger; translation itself never fails.
func Translate(ctx context.Context, batch []snapshot.MetricSnapshot, logger logging.Adapter) *colmetricspb.ExportMetricsServiceRequest {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	t := translator{ctx: ctx, logger: logger}
	req := &colmetricspb.ExportMetricsServiceRequest{}
	groups := map[string]*resourceGroup{}

	for _, snap := range batch {
		metric := t.metric(snap)
		if metric == nil {
			continue
		}

		resKey := snap.Resource.Key()

		group, ok := groups[resKey]
		if !ok {
			group = &resourceGroup{
				pb: &metricspb.ResourceMetrics{
					Resource:  &resourcepb.Resource{Attributes: t.attributes(snap.Resource.Attributes)},
					SchemaUrl: snap.Resource.SchemaURL,
				},
				scopes: map[string]*metricspb.ScopeMetrics{},
			}
			groups[resKey] = group
			req.ResourceMetrics = append(req.ResourceMetrics, group.pb)
		}

		scopeKey := snap.Scope.Key()

		scope, ok := group.scopes[scopeKey]
		if !ok {
			scope = &metricspb.ScopeMetrics{
				Scope: &commonpb.InstrumentationScope{
					Name:       snap.Scope.Name,
					Version:    snap.Scope.Version,
					Attributes: t.attributes(snap.Scope.Attributes),
				},
				SchemaUrl: snap.Scope.SchemaURL,
			}
			group.scopes[scopeKey] = scope
			group.pb.ScopeMetrics = append(group.pb.ScopeMetrics, scope)
		}

		scope.Metrics = append(scope.Metrics, metric)
	}

	return req
}

type translator struct {
	//nolint:containedctx // scoped to a single Translate call.
	ctx    context.Context
	logger logging.Adapter
}

func (t translator) metric(snap snapshot.MetricSnapshot) *metricspb.Metric {
	out := &metricspb.Metric{
		Name:        snap.Name,
		Description: snap.Description,
		Unit:        snap.Unit,
	}

	switch data := snap.Data.(type) {
	case snapshot.Sum:
		out.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			DataPoints:             t.numberPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
			IsMonotonic:            data.IsMonotonic,
		}}
	case snapshot.Gauge:
		out.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
			DataPoints: t.numberPoints(data.DataPoints),
		}}
	case snapshot.Histogram:
		out.Data = &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			DataPoints:             t.histogramPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
		}}
	case snapshot.ExponentialHistogram:
		out.Data = &metricspb.Metric_ExponentialHistogram{ExponentialHistogram: &metricspb.ExponentialHistogram{
			DataPoints:             t.exponentialPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
		}}
	default:
		t.logger.Warn(t.ctx, "unsupported aggregation, metric skipped",
			logging.Phase(logging.PhaseTranslate),
			attribute.String("metric", snap.Name),
		)

		return nil
	}

	return out
}

func temporality(t snapshot.Temporality) metricspb.AggregationTemporality {
	switch t {
	case snapshot.TemporalityDelta:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA
	case snapshot.TemporalityCumulative:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE
	default:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_UNSPECIFIED
	}
}

func (t translator) numberPoints(points []snapshot.NumberDataPoint) []*metricspb.NumberDataPoint {
	out := make([]*metricspb.NumberDataPoint, 0, len(points))
	for _, p := range points {
		dp := &metricspb.NumberDataPoint{
			Attributes:        t.attributes(p.Attributes),
			StartTimeUnixNano: p.StartTime,
			TimeUnixNano:      p.Time,
		}

		if p.Value.IsInt() {
			dp.Value = &metricspb.NumberDataPoint_AsInt{AsInt: p.Value.AsInt64()}
		} else {
			dp.Value = &metricspb.NumberDataPoint_AsDouble{AsDouble: p.Value.AsFloat64()}
		}

		out = append(out, dp)
	}

	return out
}

func (t translator) histogramPoints(points []snapshot.HistogramDataPoint) []*metricspb.HistogramDataPoint {
	out := make([]*metricspb.HistogramDataPoint, 0, len(points))
	for _, p := range points {
		out = append(out, &metricspb.HistogramDataPoint{
			Attributes:        t.attributes(p.Attributes),
			StartTimeUnixNano: p.StartTime,
			TimeUnixNano:      p.Time,
			Count:             p.Count,
			Sum:               optional(p.Sum),
			Min:               optional(p.Min),
			Max:               optional(p.Max),
			BucketCounts:      p.BucketCounts,
			ExplicitBounds:    p.Bounds,
		})
	}

	return out
}

func (t translator) exponentialPoints(points []snapshot.ExponentialHistogramDataPoint) []*metricspb.ExponentialHistogramDataPoint {
	out := make([]*metricspb.ExponentialHistogramDataPoint, 0, len(points))
	for _, p := range points {
		out = append(out, &metricspb.ExponentialHistogramDataPoint{
			Attributes:        t.attributes(p.Attributes),
			StartTimeUnixNano: p.StartTime,
			TimeUnixNano:      p.Time,
			Count:             p.Count,
			Sum:               optional(p.Sum),
			Min:               optional(p.Min),
			Max:               optional(p.Max),
			Scale:             p.Scale,
			ZeroCount:         p.ZeroCount,
			ZeroThreshold:     p.ZeroThreshold,
			Positive:          buckets(p.Positive),
			Negative:          buckets(p.Negative),
		})
	}

	return out
}

func optional(v snapshot.OptionalFloat64) *float64 {
	value, ok := v.Get()
	if !ok {
		return nil
	}

	return &value
}

func buckets(b snapshot.Buckets) *metricspb.ExponentialHistogramDataPoint_Buckets {
	return &metricspb.ExponentialHistogramDataPoint_Buckets{
		Offset:       b.Offset,
		BucketCounts: b.Counts,
	}
}
