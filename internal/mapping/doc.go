// Package mapping converts documents and update specifications into
// parameterized Cypher statements.
//
// # Graph shape
//
// A document with id I in collection L becomes a root node labelled
// Document:L keyed by _id = I and carrying the _ts timestamp. A nested
// object under field F becomes a node labelled F linked by a relationship
// typed F. Its id is the object's own _id when present, otherwise
// I-F-0. Object array elements use their index as ordinal: I-F-0, I-F-1, ...
// Scalar arrays stay list properties.
//
// Every write is a MERGE keyed by (label, _id), so applying the same
// statements twice leaves the graph unchanged. Labels, relationship types
// and property names are backtick quoted; values only travel as parameters.
//
// # Updates
//
// Updater translates $set, $unset, $push and $pull into statements that
// touch only the nodes addressed by the field paths. Paths resolve with the
// same id scheme, so updated documents look exactly like re-upserted ones.
//
// Known limits:
//   - nested nodes carrying their own _id are not addressable by update paths
//   - $unset of a scalar list element removes it instead of storing null
//   - $push of objects without $position reads the next ordinal from the
//     store and is not idempotent
package mapping
