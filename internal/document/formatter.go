package document

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Formatter canonicalizes raw source values before mapping. The second
// return value is false when the value has no graph representation (nil,
// BSON null or undefined) and the field must be dropped. Inside arrays such
// values become Null placeholders so later elements keep their index.
type Formatter interface {
	Format(raw any) (Value, bool)
}

// DefaultFormatter converts BSON and plain Go values into Values whose
// scalars are types the graph store accepts as properties.
type DefaultFormatter struct{}

// NewDefaultFormatter returns the formatter used when none is configured.
func NewDefaultFormatter() DefaultFormatter {
	return DefaultFormatter{}
}

// Format implements Formatter.
func (f DefaultFormatter) Format(raw any) (Value, bool) {
	switch v := raw.(type) {
	case nil:
		return Value{}, false
	case primitive.Null, primitive.Undefined:
		return Value{}, false

	// Leaves the store accepts as they are
	case string:
		return Scalar(v), true
	case bool:
		return Scalar(v), true
	case int64:
		return Scalar(v), true
	case float64:
		return Scalar(v), true

	case int:
		return Scalar(int64(v)), true
	case int8:
		return Scalar(int64(v)), true
	case int16:
		return Scalar(int64(v)), true
	case int32:
		return Scalar(int64(v)), true
	case uint8:
		return Scalar(int64(v)), true
	case uint16:
		return Scalar(int64(v)), true
	case uint32:
		return Scalar(int64(v)), true
	case uint:
		return formatUint(uint64(v)), true
	case uint64:
		return formatUint(v), true
	case float32:
		return Scalar(float64(v)), true

	case time.Time:
		return Scalar(v.UTC()), true
	case primitive.DateTime:
		return Scalar(v.Time().UTC()), true
	case primitive.ObjectID:
		return Scalar(v.Hex()), true
	case primitive.Binary:
		return Scalar(base64.StdEncoding.EncodeToString(v.Data)), true
	case []byte:
		return Scalar(base64.StdEncoding.EncodeToString(v)), true
	case primitive.Decimal128:
		return Scalar(v.String()), true
	case primitive.Timestamp:
		return Scalar(int64(uint64(v.T)<<32 | uint64(v.I))), true
	case primitive.Regex:
		return Scalar(fmt.Sprintf("/%s/%s", v.Pattern, v.Options)), true
	case primitive.Symbol:
		return Scalar(string(v)), true
	case primitive.JavaScript:
		return Scalar(string(v)), true
	case primitive.CodeWithScope:
		return Scalar(string(v.Code)), true
	case primitive.MinKey:
		return Scalar("MinKey"), true
	case primitive.MaxKey:
		return Scalar("MaxKey"), true

	// Containers
	case bson.D:
		fields := make([]Field, 0, len(v))
		for _, e := range v {
			if fv, ok := f.Format(e.Value); ok {
				fields = append(fields, Field{Name: e.Key, Value: fv})
			}
		}
		return Object(fields), true
	case bson.M:
		return f.formatMap(v), true
	case map[string]any:
		return f.formatMap(v), true
	case bson.A:
		return f.formatSlice(v), true
	case []any:
		return f.formatSlice(v), true
	}

	return f.formatReflect(raw)
}

func (f DefaultFormatter) formatMap(m map[string]any) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		if fv, ok := f.Format(m[k]); ok {
			fields = append(fields, Field{Name: k, Value: fv})
		}
	}
	return Object(fields)
}

func (f DefaultFormatter) formatSlice(items []any) Value {
	out := make([]Value, 0, len(items))
	for _, item := range items {
		iv, ok := f.Format(item)
		if !ok {
			iv = Null()
		}
		out = append(out, iv)
	}
	return Array(out)
}

// formatReflect handles typed slices and string-keyed maps ([]string,
// []map[string]any, map[string]string, ...) and falls back to fmt.Sprint.
func (f DefaultFormatter) formatReflect(raw any) (Value, bool) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Value{}, false
		}
		return f.Format(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Value{}, false
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return f.formatSlice(items), true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return f.formatMap(m), true
	}
	return Scalar(fmt.Sprint(raw)), true
}

func formatUint(v uint64) Value {
	if v > math.MaxInt64 {
		return Scalar(fmt.Sprintf("%d", v))
	}
	return Scalar(int64(v))
}
