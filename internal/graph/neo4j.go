package graph

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// Neo4jClient implements GraphClient on the Neo4j driver, which owns the
// connection pool. Connect retries with backoff. Queries and batches run in
// managed transactions that the driver retries within
// MaxTransactionRetryTime; failures left after that are returned as
// retryable errors when the driver classifies them so.
type Neo4jClient struct {
	config GraphClientConfig

	mu     sync.RWMutex
	driver neo4j.DriverWithContext
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(config GraphClientConfig) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Neo4jClient{
		config: config,
	}, nil
}

// Connect establishes a connection to the Neo4j database.
// Uses exponential backoff for connection retries.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		if c.config.MaxConnectionPoolSize > 0 {
			config.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		}
		config.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
		config.MaxTransactionRetryTime = c.config.MaxTransactionRetryTime
	}

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				c.mu.Lock()
				c.driver = driver
				c.mu.Unlock()
				return nil
			}
			_ = driver.Close(ctx)
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(ErrCodeGraphConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}

		// baseDelay * 2^attempt, capped at the connection timeout
		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(ErrCodeGraphConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapRetryableError(ErrCodeGraphConnectionFailed,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases all resources and closes the database connection.
func (c *Neo4jClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		return nil
	}

	if err := c.driver.Close(ctx); err != nil {
		return types.WrapError(ErrCodeGraphConnectionClosed,
			"failed to close driver", err)
	}

	c.driver = nil
	return nil
}

// Health returns the current health status of the Neo4j connection.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	driver := c.currentDriver()
	if driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}

	return types.Healthy("connected to Neo4j")
}

// Query executes a read-only Cypher query with the given parameters.
func (c *Neo4jClient) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	driver := c.currentDriver()
	if driver == nil {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}

	startTime := time.Now()

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		records, err := neoResult.Collect(ctx)
		if err != nil {
			return nil, err
		}

		summary, err := neoResult.Consume(ctx)
		if err != nil {
			return nil, err
		}

		return convertNeo4jResult(records, summary), nil
	})

	if err != nil {
		if neo4j.IsRetryable(err) {
			return QueryResult{}, types.WrapRetryableError(ErrCodeGraphQueryFailed,
				"query execution failed", err)
		}
		return QueryResult{}, types.WrapError(ErrCodeGraphQueryFailed,
			"query execution failed", err)
	}

	queryResult := result.(QueryResult)
	queryResult.Summary.ExecutionTime = time.Since(startTime)

	return queryResult, nil
}

// Execute runs a single write statement in an auto-commit transaction.
func (c *Neo4jClient) Execute(ctx context.Context, cypher string, params map[string]any) (QuerySummary, error) {
	driver := c.currentDriver()
	if driver == nil {
		return QuerySummary{}, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}

	startTime := time.Now()

	result, err := neo4j.ExecuteQuery(ctx, driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.config.Database),
		neo4j.ExecuteQueryWithWritersRouting())
	if err != nil {
		return QuerySummary{}, classifyExecuteError(err)
	}

	summary := convertSummary(result.Summary)
	summary.Statements = 1
	summary.ExecutionTime = time.Since(startTime)
	return summary, nil
}

// Begin opens a buffered write batch bound to this client.
func (c *Neo4jClient) Begin(ctx context.Context) (Batch, error) {
	if c.currentDriver() == nil {
		return nil, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}
	return &neo4jBatch{client: c}, nil
}

func (c *Neo4jClient) currentDriver() neo4j.DriverWithContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.driver
}

// neo4jBatch buffers statements locally and sends them in one managed
// write transaction on Commit. The driver retries the whole transaction
// function on transient failures, so statements must stay idempotent.
type neo4jBatch struct {
	client     *Neo4jClient
	statements []Statement
	committed  bool
}

func (b *neo4jBatch) Append(cypher string, params map[string]any) {
	b.statements = append(b.statements, Statement{Cypher: cypher, Params: params})
}

func (b *neo4jBatch) Len() int {
	return len(b.statements)
}

func (b *neo4jBatch) Statements() []Statement {
	out := make([]Statement, len(b.statements))
	copy(out, b.statements)
	return out
}

func (b *neo4jBatch) Commit(ctx context.Context) (QuerySummary, error) {
	if b.committed {
		return QuerySummary{}, types.NewError(ErrCodeGraphCommitFailed,
			"batch already committed")
	}
	b.committed = true

	if len(b.statements) == 0 {
		return QuerySummary{}, nil
	}

	driver := b.client.currentDriver()
	if driver == nil {
		return QuerySummary{}, types.NewRetryableError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}

	startTime := time.Now()

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: b.client.config.Database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var total QuerySummary
		for _, stmt := range b.statements {
			neoResult, err := tx.Run(ctx, stmt.Cypher, stmt.Params)
			if err != nil {
				return nil, err
			}
			summary, err := neoResult.Consume(ctx)
			if err != nil {
				return nil, err
			}
			s := convertSummary(summary)
			s.Statements = 1
			total.Add(s)
		}
		return total, nil
	})

	if err != nil {
		return QuerySummary{}, types.WrapRetryableError(ErrCodeGraphCommitFailed,
			fmt.Sprintf("failed to commit batch of %d statements", len(b.statements)), err)
	}

	total := result.(QuerySummary)
	total.ExecutionTime = time.Since(startTime)
	return total, nil
}

// convertNeo4jResult converts Neo4j records and summary to our QueryResult format.
func convertNeo4jResult(records []*neo4j.Record, summary neo4j.ResultSummary) QueryResult {
	result := QueryResult{
		Records: make([]map[string]any, 0, len(records)),
		Columns: []string{},
	}

	if len(records) > 0 {
		result.Columns = records[0].Keys
	}

	for _, record := range records {
		recordMap := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			recordMap[key] = convertValue(record.Values[i])
		}
		result.Records = append(result.Records, recordMap)
	}

	result.Summary = convertSummary(summary)
	return result
}

// convertValue detaches driver node values so callers never import the driver.
func convertValue(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		return Node{ElementID: val.ElementId, Labels: val.Labels, Props: val.Props}
	case *neo4j.Node:
		if val == nil {
			return nil
		}
		return Node{ElementID: val.ElementId, Labels: val.Labels, Props: val.Props}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	default:
		return v
	}
}

func convertSummary(summary neo4j.ResultSummary) QuerySummary {
	if summary == nil || summary.Counters() == nil {
		return QuerySummary{}
	}
	counters := summary.Counters()
	return QuerySummary{
		NodesCreated:         counters.NodesCreated(),
		NodesDeleted:         counters.NodesDeleted(),
		RelationshipsCreated: counters.RelationshipsCreated(),
		RelationshipsDeleted: counters.RelationshipsDeleted(),
		PropertiesSet:        counters.PropertiesSet(),
		ConstraintsAdded:     counters.ConstraintsAdded(),
	}
}
