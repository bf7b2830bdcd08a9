// Package snapshot defines the metric data handed to the exporter on every
// export call, and adapters from the OpenTelemetry Go SDK and collector pdata.
package snapshot

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

// Temporality is the aggregation temporality of a Sum or histogram stream.
type Temporality int

const (
	// TemporalityUnspecified is only valid for gauges.
	TemporalityUnspecified Temporality = iota
	// TemporalityDelta reports the change since the previous export.
	TemporalityDelta
	// TemporalityCumulative reports the total since the stream started.
	TemporalityCumulative
)

// String implements fmt.Stringer.
func (t Temporality) String() string {
	switch t {
	case TemporalityDelta:
		return "delta"
	case TemporalityCumulative:
		return "cumulative"
	default:
		return "unspecified"
	}
}

// Kind is the aggregation kind of a snapshot.
type Kind int

const (
	KindUnknown Kind = iota
	KindSum
	KindGauge
	KindHistogram
	KindExponentialHistogram
)

// Resource identifies the entity producing telemetry.
type Resource struct {
	Attributes []KeyValue
	SchemaURL  string
}

// Key is the identity of the resource: two resources with the same schema URL
// and attribute set share a key regardless of attribute order.
func (r Resource) Key() string {
	return string(appendKeyString(nil, r.SchemaURL)) + attributeSetKey(r.Attributes)
}

// Scope is the instrumentation scope that produced a metric.
type Scope struct {
	Name       string
	Version    string
	SchemaURL  string
	Attributes []KeyValue
}

// Key is the identity of the scope within a resource.
func (s Scope) Key() string {
	return string(appendKeyString(appendKeyString(nil, s.Name), s.Version))
}

// MetricSnapshot is one instrument stream ready to be exported.
type MetricSnapshot struct {
	Resource    Resource
	Scope       Scope
	Name        string
	Description string
	Unit        string
	Data        Aggregation
}

// Kind reports the aggregation kind carried by Data.
func (m MetricSnapshot) Kind() Kind {
	switch m.Data.(type) {
	case Sum:
		return KindSum
	case Gauge:
		return KindGauge
	case Histogram:
		return KindHistogram
	case ExponentialHistogram:
		return KindExponentialHistogram
	default:
		return KindUnknown
	}
}

// Aggregation is the closed set of payloads a snapshot can carry.
type Aggregation interface {
	privateAggregation()
}

// Sum is a scalar aggregation that may be monotonic.
type Sum struct {
	DataPoints  []NumberDataPoint
	Temporality Temporality
	IsMonotonic bool
}

// Gauge is a last-value scalar aggregation.
type Gauge struct {
	DataPoints []NumberDataPoint
}

// Histogram is an explicit bucket histogram.
type Histogram struct {
	DataPoints  []HistogramDataPoint
	Temporality Temporality
}

// ExponentialHistogram is a base-2 exponential bucket histogram.
type ExponentialHistogram struct {
	DataPoints  []ExponentialHistogramDataPoint
	Temporality Temporality
}

func (Sum) privateAggregation()                  {}
func (Gauge) privateAggregation()                {}
func (Histogram) privateAggregation()            {}
func (ExponentialHistogram) privateAggregation() {}

// Number holds an integral or a floating point measurement.
type Number struct {
	isFloat bool
	i       int64
	f       float64
}

// IntNumber wraps an integral value.
func IntNumber(v int64) Number {
	return Number{i: v}
}

// FloatNumber wraps a floating point value.
func FloatNumber(v float64) Number {
	return Number{isFloat: true, f: v}
}

// IsInt reports whether the value is integral.
func (n Number) IsInt() bool {
	return !n.isFloat
}

// AsInt64 returns the integral value.
func (n Number) AsInt64() int64 {
	return n.i
}

// AsFloat64 returns the value as a float, converting integral values.
func (n Number) AsFloat64() float64 {
	if n.isFloat {
		return n.f
	}

	return float64(n.i)
}

// NumberDataPoint is a single Sum or Gauge point. Timestamps are unix nanoseconds.
type NumberDataPoint struct {
	Attributes []KeyValue
	StartTime  uint64
	Time       uint64
	Value      Number
}

// OptionalFloat64 is a float that may be absent.
type OptionalFloat64 struct {
	value float64
	valid bool
}

// SomeFloat64 returns a present value.
func SomeFloat64(v float64) OptionalFloat64 {
	return OptionalFloat64{value: v, valid: true}
}

// Get returns the value and whether it is present.
func (o OptionalFloat64) Get() (float64, bool) {
	return o.value, o.valid
}

// HistogramDataPoint is a single explicit bucket histogram point.
type HistogramDataPoint struct {
	Attributes   []KeyValue
	StartTime    uint64
	Time         uint64
	Count        uint64
	Sum          OptionalFloat64
	Min          OptionalFloat64
	Max          OptionalFloat64
	BucketCounts []uint64
	Bounds       []float64
}

// Buckets is a sparse run of exponential histogram buckets.
type Buckets struct {
	Offset int32
	Counts []uint64
}

// ExponentialHistogramDataPoint is a single exponential histogram point.
type ExponentialHistogramDataPoint struct {
	Attributes    []KeyValue
	StartTime     uint64
	Time          uint64
	Count         uint64
	Sum           OptionalFloat64
	Min           OptionalFloat64
	Max           OptionalFloat64
	Scale         int32
	ZeroCount     uint64
	ZeroThreshold float64
	Positive      Buckets
	Negative      Buckets
}

func attributeSetKey(attrs []KeyValue) string {
	sorted := slices.Clone(attrs)
	slices.SortStableFunc(sorted, func(a, b KeyValue) int {
		return cmp.Compare(a.Key, b.Key)
	})

	return string(appendKeyValues(nil, sorted))
}

// Key encoding: strings are length prefixed and values carry their kind.
func appendKeyString(buf []byte, s string) []byte {
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':')

	return append(buf, s...)
}

func appendKeyValues(buf []byte, kvs []KeyValue) []byte {
	buf = strconv.AppendInt(buf, int64(len(kvs)), 10)
	buf = append(buf, '{')

	for _, kv := range kvs {
		buf = appendKeyString(buf, kv.Key)
		buf = appendKeyValue(buf, kv.Value)
	}

	return append(buf, '}')
}

func appendKeyValue(buf []byte, v Value) []byte {
	buf = append(buf, byte('0'+v.kind))

	switch v.kind {
	case KindString:
		return appendKeyString(buf, v.str)
	case KindInt64, KindBool:
		buf = strconv.AppendInt(buf, v.num, 10)
	case KindDouble:
		buf = strconv.AppendUint(buf, math.Float64bits(v.double), 16)
	case KindList:
		buf = strconv.AppendInt(buf, int64(len(v.list)), 10)
		buf = append(buf, '[')

		for _, item := range v.list {
			buf = appendKeyValue(buf, item)
		}

		buf = append(buf, ']')
	case KindMap:
		return appendKeyValues(buf, v.kvs)
	default:
	}

	return append(buf, ';')
}
