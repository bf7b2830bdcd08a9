package snapshot_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/hyp3rd/otlpmetrics/pkg/snapshot"
)

func TestResourceKeyIgnoresOrder(t *testing.T) {
	t.Parallel()

	a := snapshot.Resource{Attributes: []snapshot.KeyValue{snapshot.String("a", "1"), snapshot.Int64("b", 2)}}
	b := snapshot.Resource{Attributes: []snapshot.KeyValue{snapshot.Int64("b", 2), snapshot.String("a", "1")}}
	c := snapshot.Resource{Attributes: []snapshot.KeyValue{snapshot.String("a", "1"), snapshot.String("b", "2")}}

	if a.Key() != b.Key() {
		t.Fatal("expected attribute order to be irrelevant")
	}

	if a.Key() == c.Key() {
		t.Fatal("expected value kind to be part of the identity")
	}
}

func TestResourceKeyDistinguishesNestedValues(t *testing.T) {
	t.Parallel()

	cases := map[string][2]snapshot.KeyValue{
		"list element with separator": {
			{Key: "hosts", Value: snapshot.ListValue(snapshot.StringValue("a,b"))},
			{Key: "hosts", Value: snapshot.ListValue(snapshot.StringValue("a"), snapshot.StringValue("b"))},
		},
		"map entry with separator": {
			{Key: "labels", Value: snapshot.MapValue(snapshot.String("k", "v,x:y"))},
			{Key: "labels", Value: snapshot.MapValue(snapshot.String("k", "v"), snapshot.String("x", "y"))},
		},
		"list rendered as string": {
			{Key: "hosts", Value: snapshot.ListValue(snapshot.StringValue("a"))},
			snapshot.String("hosts", "[a]"),
		},
	}

	for name, pair := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			left := snapshot.Resource{Attributes: []snapshot.KeyValue{pair[0]}}
			right := snapshot.Resource{Attributes: []snapshot.KeyValue{pair[1]}}

			if pair[0].Equal(pair[1]) {
				t.Fatal("values must differ")
			}

			if left.Key() == right.Key() {
				t.Fatalf("distinct resources share key %q", left.Key())
			}
		})
	}
}

func TestResourceKeyIncludesSchemaURL(t *testing.T) {
	t.Parallel()

	attrs := []snapshot.KeyValue{snapshot.String("service.name", "svc")}
	v1 := snapshot.Resource{Attributes: attrs, SchemaURL: "https://opentelemetry.io/schemas/1.25.0"}
	v2 := snapshot.Resource{Attributes: attrs, SchemaURL: "https://opentelemetry.io/schemas/1.26.0"}

	if v1.Key() == v2.Key() {
		t.Fatal("expected the schema URL to be part of the identity")
	}

	if v1.Key() != (snapshot.Resource{Attributes: attrs, SchemaURL: v1.SchemaURL}).Key() {
		t.Fatal("expected equal resources to share a key")
	}
}

func TestValueEqual(t *testing.T) {
	t.Parallel()

	left := snapshot.MapValue(snapshot.KeyValue{Key: "nested", Value: snapshot.ListValue(snapshot.BoolValue(true), snapshot.DoubleValue(1.5))})
	right := snapshot.MapValue(snapshot.KeyValue{Key: "nested", Value: snapshot.ListValue(snapshot.BoolValue(true), snapshot.DoubleValue(1.5))})

	if !left.Equal(right) {
		t.Fatal("expected nested values to be equal")
	}

	if left.Equal(snapshot.StringValue(left.Emit())) {
		t.Fatal("expected different kinds to differ")
	}
}

func TestFromResourceMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "svc"))),
	)

	meter := provider.Meter("scope", metric.WithInstrumentationVersion("1.0.0"))

	counter, err := meter.Int64Counter("requests")
	if err != nil {
		t.Fatalf("create counter: %v", err)
	}

	histogram, err := meter.Float64Histogram("latency")
	if err != nil {
		t.Fatalf("create histogram: %v", err)
	}

	counter.Add(ctx, 5, metric.WithAttributes(attribute.String("foo", "bar")))
	histogram.Record(ctx, 1.5)

	var rm metricdata.ResourceMetrics

	err = reader.Collect(ctx, &rm)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	snaps := snapshot.FromResourceMetrics(&rm)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	byName := map[string]snapshot.MetricSnapshot{}
	for _, snap := range snaps {
		byName[snap.Name] = snap
	}

	requests := byName["requests"]
	if requests.Scope.Name != "scope" || requests.Scope.Version != "1.0.0" {
		t.Fatalf("unexpected scope %+v", requests.Scope)
	}

	sum, ok := requests.Data.(snapshot.Sum)
	if !ok {
		t.Fatalf("expected Sum, got %T", requests.Data)
	}

	if !sum.IsMonotonic || sum.Temporality != snapshot.TemporalityCumulative {
		t.Fatalf("unexpected sum flags %+v", sum)
	}

	if len(sum.DataPoints) != 1 || !sum.DataPoints[0].Value.IsInt() || sum.DataPoints[0].Value.AsInt64() != 5 {
		t.Fatalf("unexpected sum points %+v", sum.DataPoints)
	}

	if attrs := sum.DataPoints[0].Attributes; len(attrs) != 1 || !attrs[0].Equal(snapshot.String("foo", "bar")) {
		t.Fatalf("unexpected attributes %+v", attrs)
	}

	hist, ok := byName["latency"].Data.(snapshot.Histogram)
	if !ok {
		t.Fatalf("expected Histogram, got %T", byName["latency"].Data)
	}

	if sumValue, present := hist.DataPoints[0].Sum.Get(); !present || sumValue != 1.5 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected histogram point %+v", hist.DataPoints[0])
	}
}

func TestFromPData(t *testing.T) {
	t.Parallel()

	md := pmetric.NewMetrics()
	rm := md.ResourceMetrics().AppendEmpty()
	rm.Resource().Attributes().PutStr("service.name", "svc")

	sm := rm.ScopeMetrics().AppendEmpty()
	sm.Scope().SetName("receiver")

	gauge := sm.Metrics().AppendEmpty()
	gauge.SetName("temperature")

	dp := gauge.SetEmptyGauge().DataPoints().AppendEmpty()
	dp.SetDoubleValue(21.5)
	dp.Attributes().PutStr("room", "lab")
	dp.Attributes().PutEmptyBytes("raw").FromRaw([]byte{0xff})

	exp := sm.Metrics().AppendEmpty()
	exp.SetName("sizes")

	expHist := exp.SetEmptyExponentialHistogram()
	expHist.SetAggregationTemporality(pmetric.AggregationTemporalityDelta)

	edp := expHist.DataPoints().AppendEmpty()
	edp.SetScale(20)
	edp.SetCount(1)
	edp.SetSum(20)
	edp.Positive().SetOffset(4531870)
	edp.Positive().BucketCounts().FromRaw([]uint64{1})

	summary := sm.Metrics().AppendEmpty()
	summary.SetName("summary-only")
	summary.SetEmptySummary()

	snaps := snapshot.FromPData(md)
	if len(snaps) != 2 {
		t.Fatalf("expected summary to be skipped, got %d snapshots", len(snaps))
	}

	g, ok := snaps[0].Data.(snapshot.Gauge)
	if !ok || snaps[0].Kind() != snapshot.KindGauge {
		t.Fatalf("expected gauge, got %T", snaps[0].Data)
	}

	point := g.DataPoints[0]
	if point.Value.IsInt() || point.Value.AsFloat64() != 21.5 {
		t.Fatalf("unexpected gauge value %+v", point.Value)
	}

	if len(point.Attributes) != 2 {
		t.Fatalf("expected both attributes to be carried, got %+v", point.Attributes)
	}

	eh, ok := snaps[1].Data.(snapshot.ExponentialHistogram)
	if !ok {
		t.Fatalf("expected exponential histogram, got %T", snaps[1].Data)
	}

	if eh.Temporality != snapshot.TemporalityDelta || eh.DataPoints[0].Scale != 20 || eh.DataPoints[0].Positive.Offset != 4531870 {
		t.Fatalf("unexpected exponential histogram %+v", eh)
	}
}
