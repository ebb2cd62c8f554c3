// Package constraint creates the uniqueness constraints on _id that back
// every MERGE keyed by (label, _id).
//
// Known labels live in a Registry. MemoryRegistry serves a single process;
// RedisRegistry lets several connectors share what has been created.
package constraint
