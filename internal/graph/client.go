package graph

import (
	"context"
	"time"

	"github.com/zero-day-ai/graphsync/internal/types"
)

// GraphClient provides an interface for graph database operations.
// Implementations must be thread-safe for concurrent access.
type GraphClient interface {
	// Connect establishes a connection to the graph database.
	// Returns an error if connection fails.
	Connect(ctx context.Context) error

	// Close releases all resources and closes the database connection.
	// Should be called when the client is no longer needed.
	Close(ctx context.Context) error

	// Health returns the current health status of the graph database connection.
	Health(ctx context.Context) types.HealthStatus

	// Query executes a read-only Cypher query with the given parameters.
	// Returns QueryResult containing the result set or an error.
	Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)

	// Execute runs a single write statement in its own auto-commit transaction.
	// Schema statements (constraints) go through Execute because they cannot
	// share a transaction with data writes.
	Execute(ctx context.Context, cypher string, params map[string]any) (QuerySummary, error)

	// Begin opens a write batch. Statements appended to the batch are sent to
	// the store in append order inside one transaction when Commit is called.
	Begin(ctx context.Context) (Batch, error)
}

// Batch is an append-only list of parameterized statements committed atomically.
// A batch is owned by a single goroutine and must not be reused after Commit.
type Batch interface {
	// Append adds a statement to the end of the batch.
	Append(cypher string, params map[string]any)

	// Len returns the number of statements appended so far.
	Len() int

	// Statements returns a copy of the appended statements in order.
	Statements() []Statement

	// Commit runs every statement in one transaction. Either all statements
	// are applied or none are. Committing an empty batch is a no-op.
	Commit(ctx context.Context) (QuerySummary, error)
}

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Node is a graph node returned by Query, detached from the driver types.
type Node struct {
	ElementID string
	Labels    []string
	Props     map[string]any
}

// HasLabel reports whether the node carries the given label.
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// QueryResult represents the result of a Cypher query execution.
// It provides access to records, columns, and summary information.
type QueryResult struct {
	// Records contains the result rows as maps of column name to value.
	// Node values are converted to Node.
	Records []map[string]any

	// Columns contains the names of the columns in the result set.
	Columns []string

	// Summary contains metadata about the query execution.
	Summary QuerySummary
}

// QuerySummary provides metadata about query execution.
type QuerySummary struct {
	// ExecutionTime is the duration of query execution.
	ExecutionTime time.Duration

	// Statements is the number of statements that ran.
	Statements int

	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	ConstraintsAdded     int
}

// Add accumulates the counters of other into s.
func (s *QuerySummary) Add(other QuerySummary) {
	s.Statements += other.Statements
	s.NodesCreated += other.NodesCreated
	s.NodesDeleted += other.NodesDeleted
	s.RelationshipsCreated += other.RelationshipsCreated
	s.RelationshipsDeleted += other.RelationshipsDeleted
	s.PropertiesSet += other.PropertiesSet
	s.ConstraintsAdded += other.ConstraintsAdded
}

// GraphClientConfig contains configuration options for graph database clients.
type GraphClientConfig struct {
	// URI is the connection URI for the graph database.
	// For Neo4j, use:
	//   - "bolt://host:port" for unencrypted connections
	//   - "bolt+s://host:port" for TLS encrypted connections
	//   - "bolt+ssc://host:port" for TLS with self-signed certificates
	//   - "neo4j://" or "neo4j+s://" for routing
	URI string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// Database name to connect to.
	// Empty string uses the default database.
	Database string

	// MaxConnectionPoolSize limits the number of connections in the pool.
	// Zero or negative values use the driver default.
	MaxConnectionPoolSize int

	// ConnectionTimeout is the maximum time to wait for a connection.
	ConnectionTimeout time.Duration

	// MaxTransactionRetryTime bounds the driver's managed transaction retries.
	MaxTransactionRetryTime time.Duration
}

// DefaultConfig returns a GraphClientConfig with sensible defaults.
func DefaultConfig() GraphClientConfig {
	return GraphClientConfig{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		Password:                "password",
		Database:                "",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c GraphClientConfig) Validate() error {
	if c.URI == "" {
		return types.NewError(ErrCodeGraphInvalidConfig, "URI cannot be empty")
	}
	if c.Username == "" {
		return types.NewError(ErrCodeGraphInvalidConfig, "Username cannot be empty")
	}
	if c.Password == "" {
		return types.NewError(ErrCodeGraphInvalidConfig, "Password cannot be empty")
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(ErrCodeGraphInvalidConfig, "ConnectionTimeout must be positive")
	}
	if c.MaxTransactionRetryTime <= 0 {
		return types.NewError(ErrCodeGraphInvalidConfig, "MaxTransactionRetryTime must be positive")
	}
	return nil
}
