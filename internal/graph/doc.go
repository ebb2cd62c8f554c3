// Package graph provides the graph store client used by the synchronizer.
//
// # Architecture
//
//   - GraphClient: read queries, auto-commit writes and write batches
//   - Batch: ordered statements committed in one transaction
//   - Neo4jClient: production implementation using the Neo4j Go driver
//   - MockGraphClient: test implementation recording calls and commits
//
// # Usage
//
//	config := graph.DefaultConfig()
//	config.URI = "bolt://localhost:7687"
//
//	client, err := graph.NewNeo4jClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	batch, _ := client.Begin(ctx)
//	batch.Append("MERGE (n:Document:`Person` {_id: $id}) SET n = $props", params)
//	summary, err := batch.Commit(ctx)
//
// Schema statements such as constraint creation cannot share a transaction
// with data writes and go through Execute instead. Use IsSchemaAlreadyExists
// to treat duplicate schema rules as success.
//
// # Connection Management
//
// Connections are pooled by the driver and established with exponential
// backoff. Encryption is controlled via the URI scheme (bolt+s://, neo4j+s://).
//
// # Error Handling
//
// All errors are types.SyncError values with graph specific codes:
//
//   - ErrCodeGraphConnectionFailed: Connection establishment failed
//   - ErrCodeGraphConnectionClosed: Operation on closed connection
//   - ErrCodeGraphQueryFailed: Read query failed
//   - ErrCodeGraphExecuteFailed: Auto-commit statement failed
//   - ErrCodeGraphCommitFailed: Batch transaction failed, nothing was applied
//   - ErrCodeGraphSchemaExists: Constraint or index already present
package graph
