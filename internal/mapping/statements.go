package mapping

import (
	"github.com/zero-day-ai/graphsync/internal/graph"
)

// StatementSet is an ordered, keyed collection of parameterized statements.
// Insertion order is execution order. Putting an existing key replaces its
// statement in place, so each node or edge is written by one statement.
type StatementSet struct {
	index      map[string]int
	statements []graph.Statement
}

// NewStatementSet creates an empty set.
func NewStatementSet() *StatementSet {
	return &StatementSet{index: make(map[string]int)}
}

// Put stores stmt under key and reports whether the key was new.
func (s *StatementSet) Put(key string, stmt graph.Statement) bool {
	if i, ok := s.index[key]; ok {
		s.statements[i] = stmt
		return false
	}
	s.index[key] = len(s.statements)
	s.statements = append(s.statements, stmt)
	return true
}

// Has reports whether key is present.
func (s *StatementSet) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Get returns the statement stored under key.
func (s *StatementSet) Get(key string) (graph.Statement, bool) {
	i, ok := s.index[key]
	if !ok {
		return graph.Statement{}, false
	}
	return s.statements[i], true
}

// Len returns the number of statements.
func (s *StatementSet) Len() int {
	return len(s.statements)
}

// Statements returns the statements in insertion order.
func (s *StatementSet) Statements() []graph.Statement {
	out := make([]graph.Statement, len(s.statements))
	copy(out, s.statements)
	return out
}

func nodeKey(label, id string) string {
	return "node\x00" + label + "\x00" + id
}

func relKey(fromLabel, fromID, relType, toLabel, toID string) string {
	return "rel\x00" + fromLabel + "\x00" + fromID + "\x00" + relType + "\x00" + toLabel + "\x00" + toID
}
