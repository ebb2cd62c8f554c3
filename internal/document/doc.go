// Package document turns raw change-feed documents into the canonical shape
// the graph mapper walks.
//
// A raw document (map[string]any, bson.M or bson.D) is formatted into a tree
// of Values: scalars, ordered objects and arrays. BSON specific types are
// canonicalized on the way (ObjectID to hex, DateTime to UTC time.Time,
// Binary to base64, Decimal128 to string). Nil values are dropped.
//
// The namespace "<db>.<collection>" gives the graph label (the collection,
// case preserved) and the index (the database, case-folded). The identifier
// field, "_id" unless configured otherwise, is removed from the fields and
// carried as Normalized.ID.
package document
