package document

// Kind tags the shape of a Value.
type Kind int

const (
	// KindScalar is a leaf value stored as a node property.
	KindScalar Kind = iota
	// KindObject is a nested mapping that becomes a child node.
	KindObject
	// KindArray is a sequence; object elements become child nodes, scalar
	// elements become a list property.
	KindArray
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Field is a named value inside an object. Fields keep their source order.
type Field struct {
	Name  string
	Value Value
}

// Value is the canonical document value: Scalar | Object | Array.
// The zero Value is a nil scalar.
type Value struct {
	kind   Kind
	scalar any
	fields []Field
	items  []Value
}

// Scalar wraps a canonical leaf value (string, bool, int64, float64, time.Time).
func Scalar(v any) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Null is the placeholder of a null array element.
func Null() Value {
	return Value{kind: KindScalar}
}

// Object wraps an ordered field list.
func Object(fields []Field) Value {
	return Value{kind: KindObject, fields: fields}
}

// Array wraps a sequence of values.
func Array(items []Value) Value {
	return Value{kind: KindArray, items: items}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// Raw returns the scalar payload, or nil for objects and arrays.
func (v Value) Raw() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// IsNull reports whether v is a null scalar.
func (v Value) IsNull() bool {
	return v.kind == KindScalar && v.scalar == nil
}

// Fields returns the object's fields in order.
func (v Value) Fields() []Field {
	return v.fields
}

// Items returns the array elements in order.
func (v Value) Items() []Value {
	return v.items
}

// Get looks up a field of an object by name.
func (v Value) Get(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// IsScalarList reports whether v is an array whose elements are all scalars.
// The empty array counts as a scalar list.
func (v Value) IsScalarList() bool {
	if v.kind != KindArray {
		return false
	}
	for _, item := range v.items {
		if item.kind != KindScalar {
			return false
		}
	}
	return true
}

// ScalarItems returns the elements of a scalar list without its nulls, which
// list properties cannot hold.
func (v Value) ScalarItems() []any {
	out := make([]any, 0, len(v.items))
	for _, item := range v.items {
		if item.kind == KindScalar && item.scalar != nil {
			out = append(out, item.scalar)
		}
	}
	return out
}

// HasObjects reports whether an array contains at least one object element.
func (v Value) HasObjects() bool {
	for _, item := range v.items {
		if item.kind == KindObject {
			return true
		}
	}
	return false
}

// Interface converts v back to plain Go values: scalars as is, objects as
// map[string]any and arrays as []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindObject:
		out := make(map[string]any, len(v.fields))
		for _, f := range v.fields {
			out[f.Name] = f.Value.Interface()
		}
		return out
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	default:
		return v.scalar
	}
}
