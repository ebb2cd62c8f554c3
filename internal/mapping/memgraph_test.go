package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/zero-day-ai/graphsync/internal/graph"
)

// memGraph applies the statements produced by this package to an in-memory
// graph so tests can check end states instead of statement text.
type memGraph struct {
	nodes map[string]*memNode
	rels  map[memRel]bool
}

type memNode struct {
	labels []string
	props  map[string]any
}

type memRel struct {
	fromKey, relType, toKey string
}

func newMemGraph() *memGraph {
	return &memGraph{
		nodes: make(map[string]*memNode),
		rels:  make(map[memRel]bool),
	}
}

var quotedName = regexp.MustCompile("`((?:[^`]|``)*)`")

func quotedNames(cypher string) []string {
	var names []string
	for _, m := range quotedName.FindAllStringSubmatch(cypher, -1) {
		names = append(names, strings.ReplaceAll(m[1], "``", "`"))
	}
	return names
}

func memKey(label string, id any) string {
	return fmt.Sprintf("%s\x00%v", label, id)
}

func (g *memGraph) applyAll(t *testing.T, stmts []graph.Statement) {
	t.Helper()
	for _, st := range stmts {
		g.apply(t, st)
	}
}

func (g *memGraph) apply(t *testing.T, st graph.Statement) {
	t.Helper()
	n := quotedNames(st.Cypher)
	p := st.Params

	switch {
	case len(n) == 1 && st.Cypher == rootMergeCypher(n[0]):
		g.merge(n[0], p["id"], []string{RootLabel, n[0]}).props = copyProps(p["props"])
	case len(n) == 1 && st.Cypher == nodeMergeCypher(n[0]):
		g.merge(n[0], p["id"], []string{n[0]}).props = copyProps(p["props"])
	case len(n) == 1 && st.Cypher == touchRootCypher(n[0]):
		g.merge(n[0], p["id"], []string{RootLabel, n[0]}).props[TimestampProperty] = p["ts"]
	case len(n) == 1 && st.Cypher == setPropsCypher(n[0]):
		if node, ok := g.nodes[memKey(n[0], p["id"])]; ok {
			for k, v := range p["props"].(map[string]any) {
				if v == nil {
					delete(node.props, k)
				} else {
					node.props[k] = v
				}
			}
		}
	case len(n) == 1 && st.Cypher == pruneNodesCypher(n[0]):
		keep := map[string]bool{}
		for _, id := range p["keep"].([]string) {
			keep[id] = true
		}
		for _, key := range g.owned(memKey(n[0], p["id"])) {
			if !keep[g.nodes[key].props[IDProperty].(string)] {
				g.delete(key)
			}
		}
	case len(n) == 1 && st.Cypher == pruneRelsCypher(n[0]):
		keep := map[string]bool{}
		for _, ref := range p["keep_rels"].([]any) {
			m := ref.(map[string]any)
			keep[fmt.Sprintf("%v\x00%v\x00%v", m["from"], m["type"], m["to"])] = true
		}
		root := memKey(n[0], p["id"])
		if g.nodes[root] == nil {
			return
		}
		owners := map[string]bool{root: true}
		for _, key := range g.owned(root) {
			owners[key] = true
		}
		for r := range g.rels {
			if !owners[r.fromKey] || g.nodes[r.toKey] == nil {
				continue
			}
			from, to := g.nodes[r.fromKey].props[IDProperty], g.nodes[r.toKey].props[IDProperty]
			if !keep[fmt.Sprintf("%v\x00%v\x00%v", from, r.relType, to)] {
				delete(g.rels, r)
			}
		}
	case len(n) == 3 && st.Cypher == relMergeCypher(n[0], n[1], n[2]):
		from, to := memKey(n[0], p["from_id"]), memKey(n[1], p["to_id"])
		if g.nodes[from] != nil && g.nodes[to] != nil {
			g.rels[memRel{from, n[2], to}] = true
		}
	case len(n) == 3 && st.Cypher == chainMergeCypher(n[0], n[1], n[2]):
		from := memKey(n[0], p["from_id"])
		if g.nodes[from] == nil {
			return
		}
		to := memKey(n[1], p["to_id"])
		child := g.merge(n[1], p["to_id"], []string{n[1]})
		child.props[IDProperty] = p["to_id"]
		g.rels[memRel{from, n[2], to}] = true
	case len(n) == 2 && st.Cypher == clearFieldCypher(n[0], n[1]):
		prefix := p["prefix"].(string)
		for _, c := range g.children(memKey(n[0], p["id"]), n[1]) {
			if g.nodes[c] == nil {
				continue
			}
			rest, ok := strings.CutPrefix(g.nodes[c].props[IDProperty].(string), prefix)
			if _, err := strconv.Atoi(rest); ok && err == nil {
				g.deleteSubtree(c)
			}
		}
	case len(n) == 2 && st.Cypher == dropFieldRelsCypher(n[0], n[1]):
		from := memKey(n[0], p["id"])
		for r := range g.rels {
			if r.fromKey == from && r.relType == n[1] {
				delete(g.rels, r)
			}
		}
	case len(n) == 2 && st.Cypher == clearElementCypher(n[0], n[1]):
		for _, c := range g.children(memKey(n[0], p["id"]), n[1]) {
			if g.nodes[c] != nil && g.nodes[c].props[IDProperty] == p["element_id"] {
				g.deleteSubtree(c)
			}
		}
	case len(n) == 2 && st.Cypher == listRemoveAtCypher(n[0], n[1]):
		node, ok := g.nodes[memKey(n[0], p["id"])]
		if !ok {
			return
		}
		list, _ := node.props[n[1]].([]any)
		index := int(p["index"].(int64))
		if index < len(list) {
			node.props[n[1]] = append(append([]any{}, list[:index]...), list[index+1:]...)
		}
	default:
		t.Fatalf("memGraph cannot apply statement: %s", st.Cypher)
	}
}

func copyProps(v any) map[string]any {
	out := map[string]any{}
	for k, val := range v.(map[string]any) {
		out[k] = val
	}
	return out
}

func (g *memGraph) merge(label string, id any, labels []string) *memNode {
	key := memKey(label, id)
	node, ok := g.nodes[key]
	if !ok {
		node = &memNode{labels: labels, props: map[string]any{IDProperty: id}}
		g.nodes[key] = node
	}
	return node
}

func (g *memGraph) children(from, relType string) []string {
	var out []string
	for r := range g.rels {
		if r.fromKey == from && r.relType == relType && g.nodes[r.toKey] != nil {
			out = append(out, r.toKey)
		}
	}
	sort.Strings(out)
	return out
}

// owned walks the synthesized descendants of from, stopping at children
// that carry their own identifier.
func (g *memGraph) owned(from string) []string {
	if g.nodes[from] == nil {
		return nil
	}
	seen := map[string]bool{}
	queue := []string{from}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		parentID, _ := g.nodes[cur].props[IDProperty].(string)
		for r := range g.rels {
			if r.fromKey != cur || seen[r.toKey] || g.nodes[r.toKey] == nil {
				continue
			}
			childID, _ := g.nodes[r.toKey].props[IDProperty].(string)
			rest, ok := strings.CutPrefix(childID, parentID+"-"+r.relType+"-")
			if !ok {
				continue
			}
			if _, err := strconv.Atoi(rest); err != nil {
				continue
			}
			seen[r.toKey] = true
			out = append(out, r.toKey)
			queue = append(queue, r.toKey)
		}
	}
	sort.Strings(out)
	return out
}

func (g *memGraph) deleteSubtree(key string) {
	for _, d := range g.owned(key) {
		g.delete(d)
	}
	g.delete(key)
}

func (g *memGraph) delete(key string) {
	delete(g.nodes, key)
	for r := range g.rels {
		if r.fromKey == key || r.toKey == key {
			delete(g.rels, r)
		}
	}
}

func (g *memGraph) node(label, id string) (*memNode, bool) {
	n, ok := g.nodes[memKey(label, id)]
	return n, ok
}

func (g *memGraph) hasRel(fromLabel, fromID, relType, toLabel, toID string) bool {
	return g.rels[memRel{memKey(fromLabel, fromID), relType, memKey(toLabel, toID)}]
}

// snapshot renders the graph as sorted lines for equality checks.
func (g *memGraph) snapshot() []string {
	var out []string
	for key, n := range g.nodes {
		keys := make([]string, 0, len(n.props))
		for k := range n.props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, n.props[k]))
		}
		out = append(out, fmt.Sprintf("node %q %v {%s}", key, n.labels, strings.Join(parts, ",")))
	}
	for r := range g.rels {
		out = append(out, fmt.Sprintf("rel %q -%s-> %q", r.fromKey, r.relType, r.toKey))
	}
	sort.Strings(out)
	return out
}
