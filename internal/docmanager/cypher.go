package docmanager

import (
	"fmt"

	"github.com/saulfrancisco-ruizacevedo/gocypher"

	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/mapping"
)

const (
	searchCypher = "MATCH (n:" + mapping.RootLabel + ") " +
		"WHERE n._ts >= $start AND n._ts <= $end " +
		"RETURN n ORDER BY n._ts, n._id"

	lastDocCypher = "MATCH (n:" + mapping.RootLabel + ") " +
		"WHERE n._ts IS NOT NULL " +
		"RETURN n ORDER BY n._ts DESC LIMIT 1"
)

// rootLabels is the label expression of a root node, of one doc type unless
// label is empty.
func rootLabels(label string) string {
	if label == "" {
		return ":" + mapping.RootLabel
	}
	return ":" + mapping.RootLabel + ":" + mapping.QuoteName(label)
}

// removeRootCypher deletes one root node of a doc type. Parameters: id.
func removeRootCypher(label string) string {
	return fmt.Sprintf("MATCH (n%s {_id: $id}) DETACH DELETE n", rootLabels(label))
}

// removeChildrenCypher deletes the synthesized descendants of a root; of any
// doc type when label is empty. Children with their own identifier stay.
// Parameters: id.
func removeChildrenCypher(label string) string {
	return fmt.Sprintf("MATCH path = (r%s {_id: $id})-[*1..]->(c) "+
		"WHERE %s "+
		"WITH DISTINCT c DETACH DELETE c",
		rootLabels(label), mapping.OwnedPath("path"))
}

// dropChildrenCypher deletes the synthesized descendants of every root of a
// doc type.
func dropChildrenCypher(label string) string {
	return fmt.Sprintf("MATCH path = (r%s)-[*1..]->(c) "+
		"WHERE %s "+
		"WITH DISTINCT c DETACH DELETE c",
		rootLabels(label), mapping.OwnedPath("path"))
}

// dropRootsCypher deletes every root of a doc type.
func dropRootsCypher(label string) string {
	return fmt.Sprintf("MATCH (n%s) DETACH DELETE n", rootLabels(label))
}

// removeAnyStatement deletes every root carrying id, whatever its doc type.
func removeAnyStatement(id string) (graph.Statement, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", mapping.RootLabel).WithProperties(map[string]interface{}{mapping.IDProperty: id})).
		DetachDelete("n").
		Build()
	if err != nil {
		return graph.Statement{}, err
	}
	return graph.Statement{Cypher: query, Params: params}, nil
}

// rootByIDQuery matches every root carrying id.
func rootByIDQuery(id string) (graph.Statement, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", mapping.RootLabel).WithProperties(map[string]interface{}{mapping.IDProperty: id})).
		Return("n").
		Build()
	if err != nil {
		return graph.Statement{}, err
	}
	return graph.Statement{Cypher: query, Params: params}, nil
}
