package mapping

import (
	"fmt"

	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// NodeRef identifies a node by (label, id).
type NodeRef struct {
	Label string
	ID    string
	Root  bool
}

// BuildResult holds the statements that write one document.
type BuildResult struct {
	Root          NodeRef
	Nodes         *StatementSet
	Relationships *StatementSet
	// DocTypes lists the distinct labels written, root label first.
	DocTypes []string
	// Prune removes synthesized children left over from an earlier version
	// of the document. Nil when pruning is disabled.
	Prune *graph.Statement
	// PruneRels removes relationships of the rewritten nodes that the new
	// version no longer has, such as edges to children with their own
	// identifier. Nil when pruning is disabled.
	PruneRels *graph.Statement
}

// Statements returns the statements in execution order: prune, nodes,
// relationships, then the relationship prune.
func (r *BuildResult) Statements() []graph.Statement {
	out := make([]graph.Statement, 0, r.Nodes.Len()+r.Relationships.Len()+2)
	if r.Prune != nil {
		out = append(out, *r.Prune)
	}
	out = append(out, r.Nodes.Statements()...)
	out = append(out, r.Relationships.Statements()...)
	if r.PruneRels != nil {
		out = append(out, *r.PruneRels)
	}
	return out
}

// Builder maps normalized documents onto node and relationship statements.
// A Builder holds no per-document state and is safe for concurrent use.
type Builder struct {
	prune bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPrune toggles the statements that remove stale synthesized children
// and relationships when a document is rewritten. Enabled by default.
func WithPrune(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.prune = enabled
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{prune: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build walks doc depth-first. Scalars and scalar lists become properties of
// the current node; nested objects and object array elements become child
// nodes linked by a relationship typed after the field.
func (b *Builder) Build(doc *document.Normalized, ts int64) (*BuildResult, error) {
	if doc == nil {
		return nil, types.NewError(types.MALFORMED_DOCUMENT, "nil document")
	}

	root := NodeRef{Label: doc.Label, ID: doc.ID, Root: true}
	w := newWalker()
	if err := w.emitNode(root, doc.Fields, ts, doc.Label); err != nil {
		return nil, withDocContext(err, doc)
	}

	result := &BuildResult{
		Root:          root,
		Nodes:         w.nodes,
		Relationships: w.rels,
		DocTypes:      w.labels,
	}

	if b.prune {
		keep := w.synthesized
		if keep == nil {
			keep = []string{}
		}
		keepRels := w.relRefs
		if keepRels == nil {
			keepRels = []any{}
		}
		result.Prune = &graph.Statement{
			Cypher: pruneNodesCypher(doc.Label),
			Params: map[string]any{"id": doc.ID, "keep": keep},
		}
		result.PruneRels = &graph.Statement{
			Cypher: pruneRelsCypher(doc.Label),
			Params: map[string]any{"id": doc.ID, "keep_rels": keepRels},
		}
	}

	return result, nil
}

// walker accumulates statements for one document or one update.
type walker struct {
	nodes       *StatementSet
	rels        *StatementSet
	labels      []string
	seenLabels  map[string]bool
	synthesized []string
	// relRefs lists the written relationships as {from, type, to} maps.
	relRefs []any
}

func newWalker() *walker {
	return &walker{
		nodes:      NewStatementSet(),
		rels:       NewStatementSet(),
		seenLabels: make(map[string]bool),
	}
}

func (w *walker) addLabel(label string) {
	if !w.seenLabels[label] {
		w.seenLabels[label] = true
		w.labels = append(w.labels, label)
	}
}

type pendingChild struct {
	field   string
	ordinal int
	value   document.Value
}

// emitNode writes ref with the scalar properties found in fields and then
// recurses into its children. path is used in error messages.
func (w *walker) emitNode(ref NodeRef, fields []document.Field, ts int64, path string) error {
	w.addLabel(ref.Label)

	props := make(map[string]any, len(fields)+2)
	var children []pendingChild

	for _, f := range fields {
		if f.Name == "" {
			return malformed(path, "empty field name")
		}
		switch f.Value.Kind() {
		case document.KindScalar:
			props[f.Name] = f.Value.Raw()
		case document.KindObject:
			children = append(children, pendingChild{field: f.Name, value: f.Value})
		case document.KindArray:
			if f.Value.IsScalarList() {
				props[f.Name] = f.Value.ScalarItems()
				continue
			}
			// null elements keep their ordinal but produce no node
			for i, item := range f.Value.Items() {
				if item.IsNull() {
					continue
				}
				if item.Kind() == document.KindArray {
					return malformed(path+"."+f.Name, "nested sequences are not supported")
				}
				if item.Kind() != document.KindObject {
					return malformed(path+"."+f.Name, "sequence mixes scalars and objects")
				}
				children = append(children, pendingChild{field: f.Name, ordinal: i, value: item})
			}
		}
	}

	props[IDProperty] = ref.ID
	cypher := nodeMergeCypher(ref.Label)
	if ref.Root {
		props[TimestampProperty] = ts
		cypher = rootMergeCypher(ref.Label)
	}

	w.nodes.Put(nodeKey(ref.Label, ref.ID), graph.Statement{
		Cypher: cypher,
		Params: map[string]any{"id": ref.ID, "props": props},
	})

	for _, c := range children {
		if err := w.emitChild(ref, c.field, c.ordinal, c.value, path+"."+c.field); err != nil {
			return err
		}
	}
	return nil
}

// emitChild writes the child produced by field at ordinal under parent,
// its subtree and the parent to child relationship.
func (w *walker) emitChild(parent NodeRef, field string, ordinal int, value document.Value, path string) error {
	child, fields, err := w.childRef(parent, field, ordinal, value, path)
	if err != nil {
		return err
	}
	if err := w.emitNode(child, fields, 0, path); err != nil {
		return err
	}
	added := w.rels.Put(relKey(parent.Label, parent.ID, field, child.Label, child.ID), graph.Statement{
		Cypher: relMergeCypher(parent.Label, child.Label, field),
		Params: map[string]any{"from_id": parent.ID, "to_id": child.ID},
	})
	if added {
		w.relRefs = append(w.relRefs, map[string]any{"from": parent.ID, "type": field, "to": child.ID})
	}
	return nil
}

// childRef resolves the identity of a nested object: its own `_id` when
// present, otherwise <parentId>-<field>-<ordinal>.
func (w *walker) childRef(parent NodeRef, field string, ordinal int, value document.Value, path string) (NodeRef, []document.Field, error) {
	ref := NodeRef{Label: field}

	idValue, explicit := value.Get(IDProperty)
	if !explicit {
		ref.ID = SynthesizedID(parent.ID, field, ordinal)
		w.synthesized = append(w.synthesized, ref.ID)
		return ref, value.Fields(), nil
	}

	id, err := document.IDString(idValue)
	if err != nil {
		return NodeRef{}, nil, malformed(path, err.Error())
	}
	ref.ID = id

	fields := make([]document.Field, 0, len(value.Fields()))
	for _, f := range value.Fields() {
		if f.Name != IDProperty {
			fields = append(fields, f)
		}
	}
	return ref, fields, nil
}

func malformed(path, reason string) *types.SyncError {
	return types.NewError(types.MALFORMED_DOCUMENT,
		fmt.Sprintf("field %s: %s", path, reason)).
		WithContext("path", path)
}

func withDocContext(err error, doc *document.Normalized) error {
	if syncErr, ok := err.(*types.SyncError); ok {
		return syncErr.
			WithContext("namespace", doc.Namespace).
			WithContext("document_id", doc.ID)
	}
	return err
}
