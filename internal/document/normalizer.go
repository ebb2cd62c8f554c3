package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zero-day-ai/graphsync/internal/types"
)

// DefaultUniqueKey is the identifier field used when none is configured.
const DefaultUniqueKey = "_id"

// Normalized is a document ready for mapping: label and id are carried out
// of band and the identifier field is no longer part of Fields.
type Normalized struct {
	Namespace string
	Index     string
	Label     string
	ID        string
	Fields    []Field
}

// SplitNamespace splits "<db>.<collection>" on the first separator. The
// index is case-folded, the label keeps its case.
func SplitNamespace(namespace string) (index, label string, err error) {
	idx := strings.IndexByte(namespace, '.')
	if idx < 0 {
		return "", "", types.NewError(types.MALFORMED_DOCUMENT,
			fmt.Sprintf("namespace %q has no database separator", namespace)).
			WithContext("namespace", namespace)
	}
	index = strings.ToLower(namespace[:idx])
	label = namespace[idx+1:]
	if label == "" {
		return "", "", types.NewError(types.MALFORMED_DOCUMENT,
			fmt.Sprintf("namespace %q has an empty collection", namespace)).
			WithContext("namespace", namespace)
	}
	return index, label, nil
}

// Normalizer validates raw documents and formats their values.
type Normalizer struct {
	formatter Formatter
	uniqueKey string
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithFormatter replaces the default value formatter.
func WithFormatter(f Formatter) NormalizerOption {
	return func(n *Normalizer) {
		n.formatter = f
	}
}

// WithUniqueKey sets the identifier field name.
func WithUniqueKey(key string) NormalizerOption {
	return func(n *Normalizer) {
		if key != "" {
			n.uniqueKey = key
		}
	}
}

// NewNormalizer creates a Normalizer using the default formatter and "_id".
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		formatter: NewDefaultFormatter(),
		uniqueKey: DefaultUniqueKey,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// UniqueKey returns the identifier field name.
func (n *Normalizer) UniqueKey() string {
	return n.uniqueKey
}

// Formatter returns the value formatter, so update values can be formatted
// the same way as upserted documents.
func (n *Normalizer) Formatter() Formatter {
	return n.formatter
}

// Normalize converts a raw document (map[string]any, bson.M or bson.D) from
// the given namespace into its canonical form.
func (n *Normalizer) Normalize(raw any, namespace string) (*Normalized, error) {
	index, label, err := SplitNamespace(namespace)
	if err != nil {
		return nil, err
	}

	value, ok := n.formatter.Format(raw)
	if !ok || value.Kind() != KindObject {
		return nil, types.NewError(types.MALFORMED_DOCUMENT, "document is not a mapping").
			WithContext("namespace", namespace)
	}

	idValue, found := value.Get(n.uniqueKey)
	if !found {
		return nil, types.NewError(types.MALFORMED_DOCUMENT,
			fmt.Sprintf("document has no %s field", n.uniqueKey)).
			WithContext("namespace", namespace)
	}
	id, err := IDString(idValue)
	if err != nil {
		return nil, types.WrapError(types.MALFORMED_DOCUMENT,
			fmt.Sprintf("invalid %s field", n.uniqueKey), err).
			WithContext("namespace", namespace)
	}

	fields := make([]Field, 0, len(value.Fields()))
	for _, f := range value.Fields() {
		if f.Name == n.uniqueKey {
			continue
		}
		fields = append(fields, f)
	}

	return &Normalized{
		Namespace: namespace,
		Index:     index,
		Label:     label,
		ID:        id,
		Fields:    fields,
	}, nil
}

// Normalize is a convenience wrapper using the default formatter.
func Normalize(raw any, namespace, uniqueKey string) (*Normalized, error) {
	return NewNormalizer(WithUniqueKey(uniqueKey)).Normalize(raw, namespace)
}

// IDString renders an identifier value as the string stored in `_id`.
// Identifiers must be non-empty scalars.
func IDString(v Value) (string, error) {
	if v.Kind() != KindScalar {
		return "", fmt.Errorf("identifier must be a scalar, got %s", v.Kind())
	}
	var id string
	switch raw := v.Raw().(type) {
	case nil:
		return "", fmt.Errorf("identifier is null")
	case string:
		id = raw
	case int64:
		id = strconv.FormatInt(raw, 10)
	case float64:
		id = strconv.FormatFloat(raw, 'f', -1, 64)
	case bool:
		id = strconv.FormatBool(raw)
	case time.Time:
		id = raw.Format(time.RFC3339Nano)
	default:
		id = fmt.Sprint(raw)
	}
	if id == "" {
		return "", fmt.Errorf("identifier is empty")
	}
	return id, nil
}
