package snapshot

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// ValueKind enumerates the variants of Value.
type ValueKind int

const (
	// KindInvalid is the zero Value. It is never encodable.
	KindInvalid ValueKind = iota
	KindString
	KindInt64
	KindDouble
	KindBool
	KindList
	KindMap
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a closed variant over the attribute value types OTLP can carry.
// The zero Value is invalid.
type Value struct {
	kind   ValueKind
	str    string
	num    int64
	double float64
	list   []Value
	kvs    []KeyValue
}

// StringValue returns a string Value. The content is not validated here.
func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

// Int64Value returns an integer Value.
func Int64Value(v int64) Value {
	return Value{kind: KindInt64, num: v}
}

// DoubleValue returns a floating point Value.
func DoubleValue(v float64) Value {
	return Value{kind: KindDouble, double: v}
}

// BoolValue returns a boolean Value.
func BoolValue(v bool) Value {
	var n int64
	if v {
		n = 1
	}

	return Value{kind: KindBool, num: n}
}

// ListValue returns a list Value holding a copy of values.
func ListValue(values ...Value) Value {
	return Value{kind: KindList, list: slices.Clone(values)}
}

// MapValue returns a map Value holding a copy of kvs.
func MapValue(kvs ...KeyValue) Value {
	return Value{kind: KindMap, kvs: slices.Clone(kvs)}
}

// Kind reports the variant.
func (v Value) Kind() ValueKind {
	return v.kind
}

// AsString returns the string payload.
func (v Value) AsString() string {
	return v.str
}

// AsInt64 returns the integer payload.
func (v Value) AsInt64() int64 {
	return v.num
}

// AsDouble returns the floating point payload.
func (v Value) AsDouble() float64 {
	return v.double
}

// AsBool returns the boolean payload.
func (v Value) AsBool() bool {
	return v.num == 1
}

// AsList returns the list payload. Callers must not modify it.
func (v Value) AsList() []Value {
	return v.list
}

// AsMap returns the map payload. Callers must not modify it.
func (v Value) AsMap() []KeyValue {
	return v.kvs
}

// Emit renders the value for identity keys and diagnostics.
func (v Value) Emit() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(v.num, 10)
	case KindDouble:
		return strconv.FormatFloat(v.double, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.Emit())
		}

		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		parts := make([]string, 0, len(v.kvs))
		for _, kv := range v.kvs {
			parts = append(parts, kv.Key+":"+kv.Value.Emit())
		}

		return "{" + strings.Join(parts, ",") + "}"
	default:
		return ""
	}
}

// Equal reports deep equality. Doubles compare bitwise so NaN equals NaN.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindInt64, KindBool:
		return v.num == other.num
	case KindDouble:
		return math.Float64bits(v.double) == math.Float64bits(other.double)
	case KindList:
		return slices.EqualFunc(v.list, other.list, Value.Equal)
	case KindMap:
		return slices.EqualFunc(v.kvs, other.kvs, KeyValue.Equal)
	default:
		return true
	}
}

// KeyValue is a single attribute.
type KeyValue struct {
	Key   string
	Value Value
}

// Equal reports whether both key and value match.
func (kv KeyValue) Equal(other KeyValue) bool {
	return kv.Key == other.Key && kv.Value.Equal(other.Value)
}

// String returns a string attribute.
func String(key, value string) KeyValue {
	return KeyValue{Key: key, Value: StringValue(value)}
}

// Int64 returns an integer attribute.
func Int64(key string, value int64) KeyValue {
	return KeyValue{Key: key, Value: Int64Value(value)}
}

// Float64 returns a floating point attribute.
func Float64(key string, value float64) KeyValue {
	return KeyValue{Key: key, Value: DoubleValue(value)}
}

// Bool returns a boolean attribute.
func Bool(key string, value bool) KeyValue {
	return KeyValue{Key: key, Value: BoolValue(value)}
}
