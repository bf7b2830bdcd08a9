package snapshot

import (
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/pmetric"
)

// FromPData flattens collector pdata metrics, e.g. from a receiver pipeline.
// Summary and empty metrics are skipped. Byte attribute values have no
// counterpart in Value and are converted to invalid values.
func FromPData(md pmetric.Metrics) []MetricSnapshot {
	var out []MetricSnapshot

	rms := md.ResourceMetrics()
	for i := range rms.Len() {
		rm := rms.At(i)
		res := Resource{
			Attributes: fromPMap(rm.Resource().Attributes()),
			SchemaURL:  rm.SchemaUrl(),
		}

		sms := rm.ScopeMetrics()
		for j := range sms.Len() {
			sm := sms.At(j)
			scope := Scope{
				Name:       sm.Scope().Name(),
				Version:    sm.Scope().Version(),
				SchemaURL:  sm.SchemaUrl(),
				Attributes: fromPMap(sm.Scope().Attributes()),
			}

			metrics := sm.Metrics()
			for k := range metrics.Len() {
				m := metrics.At(k)

				data := fromPDataMetric(m)
				if data == nil {
					continue
				}

				out = append(out, MetricSnapshot{
					Resource:    res,
					Scope:       scope,
					Name:        m.Name(),
					Description: m.Description(),
					Unit:        m.Unit(),
					Data:        data,
				})
			}
		}
	}

	return out
}

func fromPDataMetric(m pmetric.Metric) Aggregation {
	//nolint:exhaustive // summaries and empty metrics are skipped.
	switch m.Type() {
	case pmetric.MetricTypeSum:
		sum := m.Sum()

		return Sum{
			DataPoints:  pdataNumberPoints(sum.DataPoints()),
			Temporality: fromPDataTemporality(sum.AggregationTemporality()),
			IsMonotonic: sum.IsMonotonic(),
		}
	case pmetric.MetricTypeGauge:
		return Gauge{DataPoints: pdataNumberPoints(m.Gauge().DataPoints())}
	case pmetric.MetricTypeHistogram:
		hist := m.Histogram()

		return Histogram{
			DataPoints:  pdataHistogramPoints(hist.DataPoints()),
			Temporality: fromPDataTemporality(hist.AggregationTemporality()),
		}
	case pmetric.MetricTypeExponentialHistogram:
		hist := m.ExponentialHistogram()

		return ExponentialHistogram{
			DataPoints:  pdataExponentialPoints(hist.DataPoints()),
			Temporality: fromPDataTemporality(hist.AggregationTemporality()),
		}
	default:
		return nil
	}
}

func fromPDataTemporality(t pmetric.AggregationTemporality) Temporality {
	//nolint:exhaustive // unspecified maps to the zero value.
	switch t {
	case pmetric.AggregationTemporalityDelta:
		return TemporalityDelta
	case pmetric.AggregationTemporalityCumulative:
		return TemporalityCumulative
	default:
		return TemporalityUnspecified
	}
}

func pdataNumberPoints(dps pmetric.NumberDataPointSlice) []NumberDataPoint {
	out := make([]NumberDataPoint, 0, dps.Len())
	for i := range dps.Len() {
		dp := dps.At(i)

		value := FloatNumber(dp.DoubleValue())
		if dp.ValueType() == pmetric.NumberDataPointValueTypeInt {
			value = IntNumber(dp.IntValue())
		}

		out = append(out, NumberDataPoint{
			Attributes: fromPMap(dp.Attributes()),
			StartTime:  uint64(dp.StartTimestamp()),
			Time:       uint64(dp.Timestamp()),
			Value:      value,
		})
	}

	return out
}

func optional(v float64, ok bool) OptionalFloat64 {
	if !ok {
		return OptionalFloat64{}
	}

	return SomeFloat64(v)
}

func pdataHistogramPoints(dps pmetric.HistogramDataPointSlice) []HistogramDataPoint {
	out := make([]HistogramDataPoint, 0, dps.Len())
	for i := range dps.Len() {
		dp := dps.At(i)
		out = append(out, HistogramDataPoint{
			Attributes:   fromPMap(dp.Attributes()),
			StartTime:    uint64(dp.StartTimestamp()),
			Time:         uint64(dp.Timestamp()),
			Count:        dp.Count(),
			Sum:          optional(dp.Sum(), dp.HasSum()),
			Min:          optional(dp.Min(), dp.HasMin()),
			Max:          optional(dp.Max(), dp.HasMax()),
			BucketCounts: dp.BucketCounts().AsRaw(),
			Bounds:       dp.ExplicitBounds().AsRaw(),
		})
	}

	return out
}

func pdataExponentialPoints(dps pmetric.ExponentialHistogramDataPointSlice) []ExponentialHistogramDataPoint {
	out := make([]ExponentialHistogramDataPoint, 0, dps.Len())
	for i := range dps.Len() {
		dp := dps.At(i)
		out = append(out, ExponentialHistogramDataPoint{
			Attributes:    fromPMap(dp.Attributes()),
			StartTime:     uint64(dp.StartTimestamp()),
			Time:          uint64(dp.Timestamp()),
			Count:         dp.Count(),
			Sum:           optional(dp.Sum(), dp.HasSum()),
			Min:           optional(dp.Min(), dp.HasMin()),
			Max:           optional(dp.Max(), dp.HasMax()),
			Scale:         dp.Scale(),
			ZeroCount:     dp.ZeroCount(),
			ZeroThreshold: dp.ZeroThreshold(),
			Positive:      Buckets{Offset: dp.Positive().Offset(), Counts: dp.Positive().BucketCounts().AsRaw()},
			Negative:      Buckets{Offset: dp.Negative().Offset(), Counts: dp.Negative().BucketCounts().AsRaw()},
		})
	}

	return out
}

func fromPMap(m pcommon.Map) []KeyValue {
	if m.Len() == 0 {
		return nil
	}

	out := make([]KeyValue, 0, m.Len())
	m.Range(func(k string, v pcommon.Value) bool {
		out = append(out, KeyValue{Key: k, Value: fromPValue(v)})

		return true
	})

	return out
}

func fromPValue(v pcommon.Value) Value {
	//nolint:exhaustive // bytes and empty values have no Value variant.
	switch v.Type() {
	case pcommon.ValueTypeStr:
		return StringValue(v.Str())
	case pcommon.ValueTypeInt:
		return Int64Value(v.Int())
	case pcommon.ValueTypeDouble:
		return DoubleValue(v.Double())
	case pcommon.ValueTypeBool:
		return BoolValue(v.Bool())
	case pcommon.ValueTypeSlice:
		slice := v.Slice()

		values := make([]Value, 0, slice.Len())
		for i := range slice.Len() {
			values = append(values, fromPValue(slice.At(i)))
		}

		return Value{kind: KindList, list: values}
	case pcommon.ValueTypeMap:
		return Value{kind: KindMap, kvs: fromPMap(v.Map())}
	default:
		return Value{}
	}
}
