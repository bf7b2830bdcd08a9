package snapshot

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// FromResourceMetrics flattens the output of an SDK reader. Aggregations
// OTLP/HTTP metrics cannot carry (summaries) are skipped.
func FromResourceMetrics(rm *metricdata.ResourceMetrics) []MetricSnapshot {
	if rm == nil {
		return nil
	}

	res := Resource{
		Attributes: FromAttributes(rm.Resource.Attributes()),
		SchemaURL:  rm.Resource.SchemaURL(),
	}

	var out []MetricSnapshot

	for _, sm := range rm.ScopeMetrics {
		scope := Scope{
			Name:       sm.Scope.Name,
			Version:    sm.Scope.Version,
			SchemaURL:  sm.Scope.SchemaURL,
			Attributes: FromAttributes(sm.Scope.Attributes.ToSlice()),
		}

		for _, m := range sm.Metrics {
			data := fromSDKAggregation(m.Data)
			if data == nil {
				continue
			}

			out = append(out, MetricSnapshot{
				Resource:    res,
				Scope:       scope,
				Name:        m.Name,
				Description: m.Description,
				Unit:        m.Unit,
				Data:        data,
			})
		}
	}

	return out
}

// FromAttributes converts otel attributes into snapshot attributes.
func FromAttributes(attrs []attribute.KeyValue) []KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	out := make([]KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, KeyValue{Key: string(attr.Key), Value: fromAttributeValue(attr.Value)})
	}

	return out
}

func fromAttributeValue(v attribute.Value) Value {
	//nolint:exhaustive // unknown types become invalid values and are dropped on translation.
	switch v.Type() {
	case attribute.BOOL:
		return BoolValue(v.AsBool())
	case attribute.INT64:
		return Int64Value(v.AsInt64())
	case attribute.FLOAT64:
		return DoubleValue(v.AsFloat64())
	case attribute.STRING:
		return StringValue(v.AsString())
	case attribute.BOOLSLICE:
		return listOf(v.AsBoolSlice(), BoolValue)
	case attribute.INT64SLICE:
		return listOf(v.AsInt64Slice(), Int64Value)
	case attribute.FLOAT64SLICE:
		return listOf(v.AsFloat64Slice(), DoubleValue)
	case attribute.STRINGSLICE:
		return listOf(v.AsStringSlice(), StringValue)
	default:
		return Value{}
	}
}

func listOf[T any](items []T, wrap func(T) Value) Value {
	values := make([]Value, 0, len(items))
	for _, item := range items {
		values = append(values, wrap(item))
	}

	return Value{kind: KindList, list: values}
}

func fromSDKAggregation(data metricdata.Aggregation) Aggregation {
	switch agg := data.(type) {
	case metricdata.Sum[int64]:
		return Sum{DataPoints: numberPoints(agg.DataPoints), Temporality: fromSDKTemporality(agg.Temporality), IsMonotonic: agg.IsMonotonic}
	case metricdata.Sum[float64]:
		return Sum{DataPoints: numberPoints(agg.DataPoints), Temporality: fromSDKTemporality(agg.Temporality), IsMonotonic: agg.IsMonotonic}
	case metricdata.Gauge[int64]:
		return Gauge{DataPoints: numberPoints(agg.DataPoints)}
	case metricdata.Gauge[float64]:
		return Gauge{DataPoints: numberPoints(agg.DataPoints)}
	case metricdata.Histogram[int64]:
		return Histogram{DataPoints: histogramPoints(agg.DataPoints), Temporality: fromSDKTemporality(agg.Temporality)}
	case metricdata.Histogram[float64]:
		return Histogram{DataPoints: histogramPoints(agg.DataPoints), Temporality: fromSDKTemporality(agg.Temporality)}
	case metricdata.ExponentialHistogram[int64]:
		return ExponentialHistogram{DataPoints: exponentialPoints(agg.DataPoints), Temporality: fromSDKTemporality(agg.Temporality)}
	case metricdata.ExponentialHistogram[float64]:
		return ExponentialHistogram{DataPoints: exponentialPoints(agg.DataPoints), Temporality: fromSDKTemporality(agg.Temporality)}
	default:
		return nil
	}
}

func fromSDKTemporality(t metricdata.Temporality) Temporality {
	switch t {
	case metricdata.DeltaTemporality:
		return TemporalityDelta
	case metricdata.CumulativeTemporality:
		return TemporalityCumulative
	default:
		return TemporalityUnspecified
	}
}

func toNumber[N int64 | float64](v N) Number {
	switch n := any(v).(type) {
	case int64:
		return IntNumber(n)
	case float64:
		return FloatNumber(n)
	default:
		return Number{}
	}
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}

	//nolint:gosec // timestamps before 1970 are not representable in OTLP.
	return uint64(t.UnixNano())
}

func numberPoints[N int64 | float64](dps []metricdata.DataPoint[N]) []NumberDataPoint {
	out := make([]NumberDataPoint, 0, len(dps))
	for _, dp := range dps {
		out = append(out, NumberDataPoint{
			Attributes: FromAttributes(dp.Attributes.ToSlice()),
			StartTime:  unixNano(dp.StartTime),
			Time:       unixNano(dp.Time),
			Value:      toNumber(dp.Value),
		})
	}

	return out
}

func extrema[N int64 | float64](e metricdata.Extrema[N]) OptionalFloat64 {
	v, ok := e.Value()
	if !ok {
		return OptionalFloat64{}
	}

	return SomeFloat64(float64(v))
}

func histogramPoints[N int64 | float64](dps []metricdata.HistogramDataPoint[N]) []HistogramDataPoint {
	out := make([]HistogramDataPoint, 0, len(dps))
	for _, dp := range dps {
		out = append(out, HistogramDataPoint{
			Attributes:   FromAttributes(dp.Attributes.ToSlice()),
			StartTime:    unixNano(dp.StartTime),
			Time:         unixNano(dp.Time),
			Count:        dp.Count,
			Sum:          SomeFloat64(float64(dp.Sum)),
			Min:          extrema(dp.Min),
			Max:          extrema(dp.Max),
			BucketCounts: dp.BucketCounts,
			Bounds:       dp.Bounds,
		})
	}

	return out
}

func exponentialPoints[N int64 | float64](dps []metricdata.ExponentialHistogramDataPoint[N]) []ExponentialHistogramDataPoint {
	out := make([]ExponentialHistogramDataPoint, 0, len(dps))
	for _, dp := range dps {
		out = append(out, ExponentialHistogramDataPoint{
			Attributes:    FromAttributes(dp.Attributes.ToSlice()),
			StartTime:     unixNano(dp.StartTime),
			Time:          unixNano(dp.Time),
			Count:         dp.Count,
			Sum:           SomeFloat64(float64(dp.Sum)),
			Min:           extrema(dp.Min),
			Max:           extrema(dp.Max),
			Scale:         dp.Scale,
			ZeroCount:     dp.ZeroCount,
			ZeroThreshold: dp.ZeroThreshold,
			Positive:      Buckets{Offset: dp.PositiveBucket.Offset, Counts: dp.PositiveBucket.Counts},
			Negative:      Buckets{Offset: dp.NegativeBucket.Offset, Counts: dp.NegativeBucket.Counts},
		})
	}

	return out
}
