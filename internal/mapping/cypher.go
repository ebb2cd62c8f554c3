package mapping

import (
	"fmt"
	"strings"
)

// RootLabel is carried by every root node next to its doc type.
const RootLabel = "Document"

// Reserved property names.
const (
	IDProperty        = "_id"
	TimestampProperty = "_ts"
)

// QuoteName backtick-quotes a label, relationship type or property name.
// Embedded backticks are doubled, so any field name is safe in statement text.
func QuoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SynthesizedID returns the id of the ordinal-th child produced by field.
func SynthesizedID(parentID, field string, ordinal int) string {
	return fmt.Sprintf("%s-%s-%d", parentID, field, ordinal)
}

// ChildPrefix is the id prefix shared by every synthesized child of field.
func ChildPrefix(parentID, field string) string {
	return parentID + "-" + field + "-"
}

// rootMergeCypher creates or replaces a root node. Parameters: id, props.
func rootMergeCypher(label string) string {
	return fmt.Sprintf("MERGE (n:%s:%s {_id: $id}) SET n = $props",
		RootLabel, QuoteName(label))
}

// nodeMergeCypher creates or replaces a nested node. Parameters: id, props.
func nodeMergeCypher(label string) string {
	return fmt.Sprintf("MERGE (n:%s {_id: $id}) SET n = $props", QuoteName(label))
}

// relMergeCypher links two existing nodes. Parameters: from_id, to_id.
func relMergeCypher(parentLabel, childLabel, relType string) string {
	return fmt.Sprintf("MATCH (a:%s {_id: $from_id}) MATCH (b:%s {_id: $to_id}) MERGE (a)-[:%s]->(b)",
		QuoteName(parentLabel), QuoteName(childLabel), QuoteName(relType))
}

// OwnedPath is a predicate on the path variable p holding when every hop
// leads from a node to one of its synthesized children,
// <parentId>-<field>-<ordinal>. Children with their own identifier may be
// shared with other documents and end the walk.
func OwnedPath(p string) string {
	return fmt.Sprintf("all(hop IN relationships(%s) WHERE "+
		"endNode(hop)._id STARTS WITH startNode(hop)._id + '-' + type(hop) + '-' AND "+
		"toInteger(substring(endNode(hop)._id, size(startNode(hop)._id) + size(type(hop)) + 2)) IS NOT NULL)", p)
}

// pruneNodesCypher removes synthesized descendants of a root that are not
// listed in $keep. Parameters: id, keep.
func pruneNodesCypher(label string) string {
	return fmt.Sprintf("MATCH path = (r:%s:%s {_id: $id})-[*1..]->(c) "+
		"WHERE %s AND NOT c._id IN $keep "+
		"WITH DISTINCT c DETACH DELETE c",
		RootLabel, QuoteName(label), OwnedPath("path"))
}

// pruneRelsCypher removes relationships leaving a root or its synthesized
// descendants that are not listed in $keep_rels, as {from, type, to} maps.
// Parameters: id, keep_rels.
func pruneRelsCypher(label string) string {
	return fmt.Sprintf("MATCH path = (r:%s:%s {_id: $id})-[*0..]->(p) "+
		"WHERE %s "+
		"WITH DISTINCT p MATCH (p)-[rel]->(c) "+
		"WHERE NOT {from: p._id, type: type(rel), to: c._id} IN $keep_rels "+
		"WITH DISTINCT rel DELETE rel",
		RootLabel, QuoteName(label), OwnedPath("path"))
}

// touchRootCypher refreshes the root timestamp, creating the root when an
// update arrives before it. Parameters: id, ts.
func touchRootCypher(label string) string {
	return fmt.Sprintf("MERGE (n:%s:%s {_id: $id}) SET n._ts = $ts",
		RootLabel, QuoteName(label))
}

// chainMergeCypher makes sure an intermediate nested node and its incoming
// relationship exist. Parameters: from_id, to_id.
func chainMergeCypher(parentLabel, childLabel, relType string) string {
	return fmt.Sprintf("MATCH (a:%s {_id: $from_id}) MERGE (b:%s {_id: $to_id}) MERGE (a)-[:%s]->(b)",
		QuoteName(parentLabel), QuoteName(childLabel), QuoteName(relType))
}

// setPropsCypher merges $props into a node; null values remove properties.
// Parameters: id, props.
func setPropsCypher(label string) string {
	return fmt.Sprintf("MATCH (n:%s {_id: $id}) SET n += $props", QuoteName(label))
}

// clearFieldCypher deletes every synthesized child produced by a field and
// the subtrees below them. Parameters: id, prefix.
func clearFieldCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c) "+
		"WHERE c._id STARTS WITH $prefix AND toInteger(substring(c._id, size($prefix))) IS NOT NULL "+
		"OPTIONAL MATCH path = (c)-[*]->(d) WHERE %s "+
		"WITH collect(DISTINCT c) + collect(DISTINCT d) AS doomed "+
		"UNWIND doomed AS x WITH DISTINCT x DETACH DELETE x",
		QuoteName(label), QuoteName(field), OwnedPath("path"))
}

// dropFieldRelsCypher removes the remaining relationships of a field, which
// point at children that carry their own identifier. Parameters: id.
func dropFieldRelsCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[r:%s]->() DELETE r",
		QuoteName(label), QuoteName(field))
}

// clearElementCypher deletes one array element node and its subtree.
// Parameters: id, element_id.
func clearElementCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c {_id: $element_id}) "+
		"OPTIONAL MATCH path = (c)-[*]->(d) WHERE %s "+
		"WITH collect(DISTINCT c) + collect(DISTINCT d) AS doomed "+
		"UNWIND doomed AS x WITH DISTINCT x DETACH DELETE x",
		QuoteName(label), QuoteName(field), OwnedPath("path"))
}

// listReplaceCypher replaces the element at $index of a list property, or
// appends when the list is shorter. Parameters: id, index, value.
func listReplaceCypher(label, field string) string {
	p := "n." + QuoteName(field)
	return fmt.Sprintf("MATCH (n:%s {_id: $id}) SET %s = CASE "+
		"WHEN %s IS NULL THEN [$value] "+
		"WHEN size(%s) <= $index THEN %s + [$value] "+
		"ELSE %s[..$index] + [$value] + %s[$index + 1..] END",
		QuoteName(label), p, p, p, p, p, p)
}

// listRemoveAtCypher drops the element at $index of a list property.
// Parameters: id, index.
func listRemoveAtCypher(label, field string) string {
	p := "n." + QuoteName(field)
	return fmt.Sprintf("MATCH (n:%s {_id: $id}) WHERE %s IS NOT NULL AND size(%s) > $index "+
		"SET %s = %s[..$index] + %s[$index + 1..]",
		QuoteName(label), p, p, p, p, p)
}

// listAppendCypher appends $values to a list property. Parameters: id, values.
func listAppendCypher(label, field string) string {
	p := "n." + QuoteName(field)
	return fmt.Sprintf("MATCH (n:%s {_id: $id}) SET %s = coalesce(%s, []) + $values",
		QuoteName(label), p, p)
}

// listInsertCypher inserts $values at $position of a list property.
// Parameters: id, position, values.
func listInsertCypher(label, field string) string {
	p := "n." + QuoteName(field)
	return fmt.Sprintf("MATCH (n:%s {_id: $id}) SET %s = coalesce(%s, [])[..$position] + $values + coalesce(%s, [])[$position..]",
		QuoteName(label), p, p, p)
}

// listPullCypher removes every element equal to $value from a list
// property. Parameters: id, value.
func listPullCypher(label, field string) string {
	p := "n." + QuoteName(field)
	return fmt.Sprintf("MATCH (n:%s {_id: $id}) WHERE %s IS NOT NULL SET %s = [x IN %s WHERE x <> $value]",
		QuoteName(label), p, p, p)
}

// pullObjectsCypher deletes the element nodes of a field whose properties
// equal every entry of $match, with their subtrees. Parameters: id, prefix, match.
func pullObjectsCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c) "+
		"WHERE c._id STARTS WITH $prefix AND all(k IN keys($match) WHERE c[k] = $match[k]) "+
		"OPTIONAL MATCH (c)-[*]->(d) WHERE d._id STARTS WITH c._id + '-' "+
		"WITH collect(DISTINCT c) + collect(DISTINCT d) AS doomed "+
		"UNWIND doomed AS x WITH DISTINCT x DETACH DELETE x",
		QuoteName(label), QuoteName(field))
}

// Renumbering moves element nodes to new ordinals in two statements: the
// first renames the affected elements (and their subtrees) to temporary ids
// under $tmp, the second moves every temporary id back under $prefix. Ids
// are therefore never duplicated, even inside the transaction.

// shiftElementsCypher renames elements with ordinal >= $position to
// ordinal + $shift. Parameters: id, prefix, tmp, position, shift.
func shiftElementsCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c) "+
		"WHERE c._id STARTS WITH $prefix "+
		"WITH c, toInteger(substring(c._id, size($prefix))) AS ord "+
		"WHERE ord IS NOT NULL AND ord >= $position "+
		"WITH c, $tmp + toString(ord + $shift) AS newId "+
		renameSubtreeTail,
		QuoteName(label), QuoteName(field))
}

// compactElementsCypher renames elements to consecutive ordinals starting at
// zero, keeping their order. Parameters: id, prefix, tmp.
func compactElementsCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c) "+
		"WHERE c._id STARTS WITH $prefix "+
		"WITH c, toInteger(substring(c._id, size($prefix))) AS ord "+
		"WHERE ord IS NOT NULL "+
		"WITH c, ord ORDER BY ord "+
		"WITH collect(c) AS cs "+
		"UNWIND range(0, size(cs) - 1) AS i "+
		"WITH cs[i] AS c, $tmp + toString(i) AS newId "+
		renameSubtreeTail,
		QuoteName(label), QuoteName(field))
}

// finalizeElementsCypher moves temporary ids back under $prefix.
// Parameters: id, prefix, tmp.
func finalizeElementsCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c) "+
		"WHERE c._id STARTS WITH $tmp "+
		"WITH c, $prefix + substring(c._id, size($tmp)) AS newId "+
		renameSubtreeTail,
		QuoteName(label), QuoteName(field))
}

const renameSubtreeTail = "OPTIONAL MATCH (c)-[*]->(d) WHERE d._id STARTS WITH c._id + '-' " +
	"WITH c, newId, c._id AS oldId, collect(DISTINCT d) AS ds " +
	"FOREACH (x IN ds | SET x._id = newId + substring(x._id, size(oldId))) " +
	"SET c._id = newId"

// maxOrdinalCypher reads the highest element ordinal of a field.
// Parameters: id, prefix. Column: ord.
func maxOrdinalCypher(label, field string) string {
	return fmt.Sprintf("MATCH (p:%s {_id: $id})-[:%s]->(c) "+
		"WHERE c._id STARTS WITH $prefix "+
		"RETURN max(toInteger(substring(c._id, size($prefix)))) AS ord",
		QuoteName(label), QuoteName(field))
}
