// Package changefeed reads operations from a MongoDB deployment and applies
// them to a DocManager.
//
// DocumentStream is the pull interface BulkUpsert consumes; a MongoSource
// dump, a slice or a channel can back it. Watch tails a change stream and
// hands each converted Event to a Dispatcher, which routes it to the
// matching DocManager operation and records a checkpoint.
package changefeed
