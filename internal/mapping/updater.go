package mapping

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// OrdinalSource reports the ordinal the next appended element of an object
// array gets. It is only consulted for $push without $position.
type OrdinalSource interface {
	NextOrdinal(ctx context.Context, owner NodeRef, field string) (int, error)
}

// UpdateResult holds the statements reproducing one update.
type UpdateResult struct {
	Statements []graph.Statement
	// DocTypes lists the labels the statements may create, root label first.
	DocTypes []string
}

// Updater translates parsed update specs into graph mutations touching only
// the nodes named by the update's field paths.
type Updater struct {
	ordinals OrdinalSource
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithOrdinalSource sets the source of append ordinals.
func WithOrdinalSource(src OrdinalSource) UpdaterOption {
	return func(u *Updater) {
		u.ordinals = src
	}
}

// NewUpdater creates an Updater.
func NewUpdater(opts ...UpdaterOption) *Updater {
	u := &Updater{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Translate converts spec into statements for the document (label, docID).
// The root `_ts` refresh comes first.
func (u *Updater) Translate(ctx context.Context, spec *UpdateSpec, docID, label string, ts int64) (*UpdateResult, error) {
	if spec == nil {
		return nil, translationError("nil update specification")
	}
	if spec.IsReplacement() {
		return nil, translationError("replacement documents must be upserted")
	}
	if len(spec.Ops) == 0 {
		return nil, translationError("update specification has no field operations")
	}
	if docID == "" || label == "" {
		return nil, translationError("update needs a document id and label")
	}

	t := &translation{
		ctx:      ctx,
		ordinals: u.ordinals,
		root:     NodeRef{Label: label, ID: docID, Root: true},
		seen:     make(map[string]bool),
		chained:  make(map[string]bool),
		next:     make(map[string]int),
	}
	t.addLabel(label)
	t.emit(touchRootCypher(label), map[string]any{"id": docID, "ts": ts})

	for _, op := range spec.Ops {
		if err := t.apply(op); err != nil {
			if syncErr, ok := err.(*types.SyncError); ok {
				return nil, syncErr.
					WithContext("document_id", docID).
					WithContext("label", label)
			}
			return nil, err
		}
	}

	return &UpdateResult{Statements: t.statements, DocTypes: t.labels}, nil
}

// translation is the state of one Translate call.
type translation struct {
	ctx        context.Context
	ordinals   OrdinalSource
	root       NodeRef
	statements []graph.Statement
	labels     []string
	seen       map[string]bool
	chained    map[string]bool
	// next caches append ordinals handed out during this translation.
	next map[string]int
}

func (t *translation) emit(cypher string, params map[string]any) {
	t.statements = append(t.statements, graph.Statement{Cypher: cypher, Params: params})
}

func (t *translation) addLabel(label string) {
	if !t.seen[label] {
		t.seen[label] = true
		t.labels = append(t.labels, label)
	}
}

func (t *translation) apply(op Operation) error {
	path := op.Path
	last := op.Field()
	index, indexed := ordinalSegment(last)
	create := op.Kind == OpSet || op.Kind == OpPush

	var owner NodeRef
	var field string
	if indexed {
		owner = t.resolve(path[:len(path)-2], create)
		field = path[len(path)-2]
	} else {
		owner = t.resolve(path[:len(path)-1], create)
		field = last
	}

	switch op.Kind {
	case OpSet:
		if indexed {
			return t.setElement(owner, field, index, op.Value)
		}
		return t.setField(owner, field, op.Value)
	case OpUnset:
		if indexed {
			t.unsetElement(owner, field, index)
			return nil
		}
		t.unsetField(owner, field)
		return nil
	case OpPush:
		return t.push(owner, field, op.Each, op.Position)
	case OpPull:
		t.pull(owner, field, op.Value)
		return nil
	}
	return translationError(fmt.Sprintf("unsupported operation %s", op.Kind))
}

// resolve walks path segments from the root to the node owning the last
// field. A field followed by an index addresses that element, a field alone
// addresses element 0. With create set the chain is merged into existence.
func (t *translation) resolve(segments []string, create bool) NodeRef {
	cur := t.root
	for i := 0; i < len(segments); {
		field := segments[i]
		ordinal, step := 0, 1
		if i+1 < len(segments) {
			if n, ok := ordinalSegment(segments[i+1]); ok {
				ordinal, step = n, 2
			}
		}
		child := NodeRef{Label: field, ID: SynthesizedID(cur.ID, field, ordinal)}
		if create {
			t.chain(cur, child, field)
		}
		cur = child
		i += step
	}
	return cur
}

func (t *translation) chain(parent, child NodeRef, field string) {
	key := relKey(parent.Label, parent.ID, field, child.Label, child.ID)
	if t.chained[key] {
		return
	}
	t.chained[key] = true
	t.addLabel(child.Label)
	t.emit(chainMergeCypher(parent.Label, child.Label, field),
		map[string]any{"from_id": parent.ID, "to_id": child.ID})
}

// clearField removes whatever subtree a field produced before.
func (t *translation) clearField(owner NodeRef, field string) {
	t.emit(clearFieldCypher(owner.Label, field),
		map[string]any{"id": owner.ID, "prefix": ChildPrefix(owner.ID, field)})
	t.emit(dropFieldRelsCypher(owner.Label, field),
		map[string]any{"id": owner.ID})
}

func (t *translation) setProps(owner NodeRef, props map[string]any) {
	t.emit(setPropsCypher(owner.Label), map[string]any{"id": owner.ID, "props": props})
}

func (t *translation) setField(owner NodeRef, field string, value document.Value) error {
	t.clearField(owner, field)

	switch value.Kind() {
	case document.KindScalar:
		t.setProps(owner, map[string]any{field: value.Raw()})
		return nil
	case document.KindObject:
		t.setProps(owner, map[string]any{field: nil})
		return t.build(owner, field, []int{0}, []document.Value{value})
	default:
		if value.IsScalarList() {
			t.setProps(owner, map[string]any{field: value.ScalarItems()})
			return nil
		}
		var ordinals []int
		var elements []document.Value
		for i, item := range value.Items() {
			if item.IsNull() {
				continue
			}
			if item.Kind() != document.KindObject {
				return translationError(fmt.Sprintf("%s: sequence mixes objects with %s elements", field, item.Kind()))
			}
			ordinals = append(ordinals, i)
			elements = append(elements, item)
		}
		t.setProps(owner, map[string]any{field: nil})
		return t.build(owner, field, ordinals, elements)
	}
}

func (t *translation) setElement(owner NodeRef, field string, index int, value document.Value) error {
	if value.IsNull() {
		t.unsetElement(owner, field, index)
		return nil
	}

	elementID := SynthesizedID(owner.ID, field, index)
	t.emit(clearElementCypher(owner.Label, field),
		map[string]any{"id": owner.ID, "element_id": elementID})

	switch value.Kind() {
	case document.KindScalar:
		t.emit(listReplaceCypher(owner.Label, field),
			map[string]any{"id": owner.ID, "index": int64(index), "value": value.Raw()})
		return nil
	case document.KindObject:
		return t.build(owner, field, []int{index}, []document.Value{value})
	default:
		return translationError(fmt.Sprintf("%s.%d: nested sequences are not supported", field, index))
	}
}

func (t *translation) unsetField(owner NodeRef, field string) {
	t.setProps(owner, map[string]any{field: nil})
	t.clearField(owner, field)
}

// unsetElement deletes an element node in place, leaving later ordinals
// untouched. Scalar list elements are removed, since lists cannot hold null.
// Setting an element to null does the same.
func (t *translation) unsetElement(owner NodeRef, field string, index int) {
	t.emit(clearElementCypher(owner.Label, field),
		map[string]any{"id": owner.ID, "element_id": SynthesizedID(owner.ID, field, index)})
	t.emit(listRemoveAtCypher(owner.Label, field),
		map[string]any{"id": owner.ID, "index": int64(index)})
}

func (t *translation) push(owner NodeRef, field string, values []document.Value, position *int) error {
	if len(values) == 0 {
		return nil
	}

	if values[0].Kind() == document.KindScalar {
		raw := make([]any, len(values))
		for i, v := range values {
			raw[i] = v.Raw()
		}
		if position == nil {
			t.emit(listAppendCypher(owner.Label, field),
				map[string]any{"id": owner.ID, "values": raw})
		} else {
			t.emit(listInsertCypher(owner.Label, field),
				map[string]any{"id": owner.ID, "position": int64(*position), "values": raw})
		}
		return nil
	}

	key := owner.Label + "\x00" + owner.ID + "\x00" + field
	ordinals := make([]int, len(values))

	if position != nil {
		t.renumber(shiftElementsCypher(owner.Label, field), owner, field, map[string]any{
			"position": int64(*position),
			"shift":    int64(len(values)),
		})
		for i := range values {
			ordinals[i] = *position + i
		}
		if err := t.build(owner, field, ordinals, values); err != nil {
			return err
		}
		// a position past the end leaves a gap
		t.renumber(compactElementsCypher(owner.Label, field), owner, field, nil)
		delete(t.next, key)
		return nil
	}

	base, ok := t.next[key]
	if !ok {
		if t.ordinals == nil {
			return translationError(fmt.Sprintf("%s: appending objects without $position needs an ordinal source", field))
		}
		n, err := t.ordinals.NextOrdinal(t.ctx, owner, field)
		if err != nil {
			return types.WrapError(types.UPDATE_TRANSLATION_FAILED,
				fmt.Sprintf("%s: failed to read the next element ordinal", field), err)
		}
		base = n
	}
	for i := range values {
		ordinals[i] = base + i
	}
	t.next[key] = base + len(values)
	return t.build(owner, field, ordinals, values)
}

func (t *translation) pull(owner NodeRef, field string, value document.Value) {
	if value.IsNull() {
		// nulls have neither a list slot nor a node
		return
	}
	if value.Kind() == document.KindScalar {
		t.emit(listPullCypher(owner.Label, field),
			map[string]any{"id": owner.ID, "value": value.Raw()})
		return
	}

	match := make(map[string]any, len(value.Fields()))
	for _, f := range value.Fields() {
		match[f.Name] = f.Value.Raw()
	}
	t.emit(pullObjectsCypher(owner.Label, field), map[string]any{
		"id":     owner.ID,
		"prefix": ChildPrefix(owner.ID, field),
		"match":  match,
	})
	// remaining elements move down like array indexes do
	t.renumber(compactElementsCypher(owner.Label, field), owner, field, nil)
	delete(t.next, owner.Label+"\x00"+owner.ID+"\x00"+field)
}

// renumber emits a rename statement followed by the statement moving
// temporary ids back under the field's prefix.
func (t *translation) renumber(cypher string, owner NodeRef, field string, extra map[string]any) {
	prefix := ChildPrefix(owner.ID, field)
	tmp := prefix + "~"

	params := map[string]any{"id": owner.ID, "prefix": prefix, "tmp": tmp}
	for k, v := range extra {
		params[k] = v
	}
	t.emit(cypher, params)
	t.emit(finalizeElementsCypher(owner.Label, field),
		map[string]any{"id": owner.ID, "prefix": prefix, "tmp": tmp})
}

// build writes element subtrees with the Builder walk: nodes first, then
// relationships.
func (t *translation) build(owner NodeRef, field string, ordinals []int, values []document.Value) error {
	w := newWalker()
	for i, v := range values {
		path := fmt.Sprintf("%s.%d", field, ordinals[i])
		if err := w.emitChild(owner, field, ordinals[i], v, path); err != nil {
			return types.WrapError(types.UPDATE_TRANSLATION_FAILED,
				fmt.Sprintf("%s: value cannot be mapped", field), err)
		}
	}
	for _, label := range w.labels {
		t.addLabel(label)
	}
	t.statements = append(t.statements, w.nodes.Statements()...)
	t.statements = append(t.statements, w.rels.Statements()...)
	return nil
}
