// Package docmanager applies change-feed operations to the graph store.
//
// A DocManager turns upserts, updates, removals and commands into batches of
// parameterized statements (see internal/mapping), makes sure every label it
// writes carries a uniqueness constraint on _id (see internal/constraint) and
// commits each batch as one transaction. BulkUpsert groups documents into
// chunks of chunk_size documents per transaction.
//
// With a zero auto-commit interval every operation commits immediately. With
// a positive interval, writes are buffered in a pending batch that is flushed
// on a schedule, by Commit, by Stop, and before any read.
//
// Basic usage:
//
//	mgr, err := docmanager.New(client, docmanager.Config{ChunkSize: 500})
//	if err != nil {
//	    return err
//	}
//	defer mgr.Stop(ctx)
//
//	err = mgr.Upsert(ctx, map[string]any{"_id": "a1", "name": "Alice"}, "db.Person", ts)
package docmanager
