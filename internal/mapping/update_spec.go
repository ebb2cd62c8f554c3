package mapping

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// OpKind is a field-level update operation.
type OpKind string

const (
	OpSet   OpKind = "$set"
	OpUnset OpKind = "$unset"
	OpPush  OpKind = "$push"
	OpPull  OpKind = "$pull"
)

// operatorOrder fixes the order operators are translated in.
var operatorOrder = []OpKind{OpUnset, OpSet, OpPull, OpPush}

// Operation is one field path with its operator and operand.
type Operation struct {
	Kind OpKind
	// Path holds the dotted path segments, e.g. "items.1.qty".
	Path []string
	// Value is the operand of $set and $pull.
	Value document.Value
	// Each holds the values appended by $push.
	Each []document.Value
	// Position is the $position modifier of $push, nil when absent.
	Position *int
}

// Field returns the last path segment.
func (o Operation) Field() string {
	return o.Path[len(o.Path)-1]
}

// UpdateSpec is a parsed update document. Either Replacement is set or Ops
// holds at least one operation.
type UpdateSpec struct {
	Replacement map[string]any
	Ops         []Operation
}

// IsReplacement reports whether the spec replaces the whole document.
func (s *UpdateSpec) IsReplacement() bool {
	return s.Replacement != nil
}

// ParseUpdateSpec parses a Mongo style update document. A document without
// operators is a replacement. Operators are applied in a fixed order and
// paths in lexical order, so translation is deterministic.
func ParseUpdateSpec(spec map[string]any) (*UpdateSpec, error) {
	return ParseUpdateSpecWith(spec, document.NewDefaultFormatter())
}

// ParseUpdateSpecWith is ParseUpdateSpec with a caller supplied formatter.
func ParseUpdateSpecWith(spec map[string]any, formatter document.Formatter) (*UpdateSpec, error) {
	if len(spec) == 0 {
		return nil, translationError("empty update specification")
	}

	operators := 0
	for key := range spec {
		if strings.HasPrefix(key, "$") {
			operators++
		}
	}
	if operators == 0 {
		return &UpdateSpec{Replacement: spec}, nil
	}
	if operators != len(spec) {
		return nil, translationError("update specification mixes operators and fields")
	}

	known := make(map[OpKind]bool, len(operatorOrder))
	for _, op := range operatorOrder {
		known[op] = true
	}
	for key := range spec {
		if !known[OpKind(key)] {
			return nil, translationError(fmt.Sprintf("unsupported update operator %s", key))
		}
	}

	parsed := &UpdateSpec{}
	for _, kind := range operatorOrder {
		raw, ok := spec[string(kind)]
		if !ok {
			continue
		}
		fields, ok := operandFields(raw, formatter)
		if !ok {
			return nil, translationError(fmt.Sprintf("%s operand must be a mapping", kind))
		}

		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

		for _, f := range fields {
			op, err := parseOperation(kind, f)
			if err != nil {
				return nil, err
			}
			parsed.Ops = append(parsed.Ops, op)
		}
	}

	if len(parsed.Ops) == 0 {
		return nil, translationError("update specification has no field operations")
	}
	return parsed, nil
}

// operandFields lists the fields of an operator operand. Unlike document
// fields, null operands are kept as Null values: {$set: {f: null}} must
// remove f from the graph.
func operandFields(raw any, formatter document.Formatter) ([]document.Field, bool) {
	var fields []document.Field
	add := func(name string, v any) {
		value, ok := formatter.Format(v)
		if !ok {
			value = document.Null()
		}
		fields = append(fields, document.Field{Name: name, Value: value})
	}

	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			add(k, v)
		}
	case bson.M:
		for k, v := range m {
			add(k, v)
		}
	case bson.D:
		for _, e := range m {
			add(e.Key, e.Value)
		}
	default:
		operand, ok := formatter.Format(raw)
		if !ok || operand.Kind() != document.KindObject {
			return nil, false
		}
		return append([]document.Field(nil), operand.Fields()...), true
	}
	return fields, true
}

func parseOperation(kind OpKind, f document.Field) (Operation, error) {
	path, err := SplitPath(f.Name)
	if err != nil {
		return Operation{}, err
	}
	op := Operation{Kind: kind, Path: path, Value: f.Value}

	switch kind {
	case OpPush:
		if _, numeric := ordinalSegment(op.Field()); numeric {
			return Operation{}, translationError(fmt.Sprintf("%s: $push needs an array field, got index", f.Name))
		}
		op.Each = []document.Value{f.Value}
		if f.Value.Kind() == document.KindObject {
			if each, ok := f.Value.Get("$each"); ok {
				if each.Kind() != document.KindArray {
					return Operation{}, translationError(fmt.Sprintf("%s: $each must be a sequence", f.Name))
				}
				op.Each = each.Items()
				if pos, ok := f.Value.Get("$position"); ok {
					p, err := intOperand(pos)
					if err != nil {
						return Operation{}, translationError(fmt.Sprintf("%s: $position %v", f.Name, err))
					}
					op.Position = &p
				}
			}
		}
		each, err := pushElements(f.Name, op.Each)
		if err != nil {
			return Operation{}, err
		}
		op.Each = each
	case OpPull:
		if _, numeric := ordinalSegment(op.Field()); numeric {
			return Operation{}, translationError(fmt.Sprintf("%s: $pull needs an array field, got index", f.Name))
		}
		if f.Value.Kind() == document.KindArray {
			return Operation{}, translationError(fmt.Sprintf("%s: $pull by sequence is not supported", f.Name))
		}
		if f.Value.Kind() == document.KindObject {
			for _, cond := range f.Value.Fields() {
				if strings.HasPrefix(cond.Name, "$") {
					return Operation{}, translationError(fmt.Sprintf("%s: query operator %s in $pull is not supported", f.Name, cond.Name))
				}
				if cond.Value.Kind() != document.KindScalar {
					return Operation{}, translationError(fmt.Sprintf("%s: $pull conditions must be scalar", f.Name))
				}
			}
		}
	}
	return op, nil
}

// pushElements rejects pushes mixing scalars and objects or nesting
// sequences. Nulls are dropped from scalar pushes, since list properties
// cannot hold them; they are rejected next to objects, where they would
// take an ordinal.
func pushElements(path string, items []document.Value) ([]document.Value, error) {
	var objects, scalars, nulls int
	for _, item := range items {
		switch {
		case item.IsNull():
			nulls++
		case item.Kind() == document.KindObject:
			objects++
		case item.Kind() == document.KindScalar:
			scalars++
		default:
			return nil, translationError(fmt.Sprintf("%s: nested sequences are not supported", path))
		}
	}
	if objects > 0 && scalars > 0 {
		return nil, translationError(fmt.Sprintf("%s: pushed values mix scalars and objects", path))
	}
	if objects > 0 && nulls > 0 {
		return nil, translationError(fmt.Sprintf("%s: pushed values mix nulls and objects", path))
	}
	if nulls == 0 {
		return items, nil
	}
	out := make([]document.Value, 0, len(items)-nulls)
	for _, item := range items {
		if !item.IsNull() {
			out = append(out, item)
		}
	}
	return out, nil
}

// SplitPath splits a dotted field path. Empty segments, a leading index and
// the identifier field are rejected.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, translationError("empty field path")
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, translationError(fmt.Sprintf("field path %q has an empty segment", path))
		}
	}
	if _, numeric := ordinalSegment(segments[0]); numeric {
		return nil, translationError(fmt.Sprintf("field path %q starts with an index", path))
	}
	if segments[0] == IDProperty {
		return nil, translationError("the identifier field cannot be updated")
	}
	for i := 1; i < len(segments); i++ {
		_, prev := ordinalSegment(segments[i-1])
		_, cur := ordinalSegment(segments[i])
		if prev && cur {
			return nil, translationError(fmt.Sprintf("field path %q addresses a nested sequence", path))
		}
	}
	return segments, nil
}

// ordinalSegment parses a path segment as an array index.
func ordinalSegment(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func intOperand(v document.Value) (int, error) {
	switch raw := v.Raw().(type) {
	case int64:
		if raw < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return int(raw), nil
	case float64:
		if raw < 0 || raw != float64(int(raw)) {
			return 0, fmt.Errorf("must be a non-negative integer")
		}
		return int(raw), nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

func translationError(message string) *types.SyncError {
	return types.NewError(types.UPDATE_TRANSLATION_FAILED, message)
}
