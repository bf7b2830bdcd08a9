package translate

import (
	"unicode/utf8"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"

	"github.com/hyp3rd/otlpmetrics/pkg/logging"
	"github.com/hyp3rd/otlpmetrics/pkg/snapshot"
)

// ErrInvalidAttribute is reported for every attribute dropped from a request.
var ErrInvalidAttribute = ewrap.New("invalid attribute")

func (t translator) attributes(attrs []snapshot.KeyValue) []*commonpb.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	out := make([]*commonpb.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		encoded, err := encodeKeyValue(kv)
		if err != nil {
			t.logger.Warn(t.ctx, "encoding error for key "+printable(kv.Key)+" and value "+printable(kv.Value.Emit()),
				logging.Phase(logging.PhaseTranslate),
				attribute.String("key", printable(kv.Key)),
				attribute.String("reason", err.Error()),
			)

			continue
		}

		out = append(out, encoded)
	}

	return out
}

func encodeKeyValue(kv snapshot.KeyValue) (*commonpb.KeyValue, error) {
	if kv.Key == "" {
		return nil, ewrap.Wrap(ErrInvalidAttribute, "empty key")
	}

	if !utf8.ValidString(kv.Key) {
		return nil, ewrap.Wrap(ErrInvalidAttribute, "key is not valid UTF-8")
	}

	value, err := encodeValue(kv.Value)
	if err != nil {
		return nil, err
	}

	return &commonpb.KeyValue{Key: kv.Key, Value: value}, nil
}

// encodeValue rejects the whole value when any nested element is invalid.
func encodeValue(v snapshot.Value) (*commonpb.AnyValue, error) {
	switch v.Kind() {
	case snapshot.KindString:
		if !utf8.ValidString(v.AsString()) {
			return nil, ewrap.Wrap(ErrInvalidAttribute, "string value is not valid UTF-8")
		}

		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.AsString()}}, nil
	case snapshot.KindInt64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}, nil
	case snapshot.KindDouble:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsDouble()}}, nil
	case snapshot.KindBool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}, nil
	case snapshot.KindList:
		items := v.AsList()

		values := make([]*commonpb.AnyValue, 0, len(items))
		for _, item := range items {
			encoded, err := encodeValue(item)
			if err != nil {
				return nil, err
			}

			values = append(values, encoded)
		}

		return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: values}}}, nil
	case snapshot.KindMap:
		entries := v.AsMap()

		kvs := make([]*commonpb.KeyValue, 0, len(entries))
		for _, entry := range entries {
			encoded, err := encodeKeyValue(entry)
			if err != nil {
				return nil, err
			}

			kvs = append(kvs, encoded)
		}

		return &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{Values: kvs}}}, nil
	default:
		return nil, ewrap.Wrapf(ErrInvalidAttribute, "unsupported value kind %s", v.Kind())
	}
}

// printable replaces invalid UTF-8 so diagnostics stay valid text.
func printable(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	return string([]rune(s))
}
