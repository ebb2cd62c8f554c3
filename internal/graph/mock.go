package graph

import (
	"context"
	"sync"
	"time"

	"github.com/zero-day-ai/graphsync/internal/types"
)

// MockCall represents a recorded method call on the mock graph client.
type MockCall struct {
	Method    string
	Args      []interface{}
	Timestamp time.Time
}

// MockGraphClient is a mock implementation of GraphClient for testing.
// It records every call, every executed statement and every committed batch.
type MockGraphClient struct {
	mu sync.RWMutex

	// State
	connected    bool
	healthStatus types.HealthStatus
	calls        []MockCall
	executed     []Statement
	committed    [][]Statement
	commits      int

	// Configurable responses
	queryResults     []QueryResult
	queryError       error
	connectError     error
	closeError       error
	executeErrorFunc func(cypher string) error
	commitErrorFunc  func(attempt int, statements []Statement) error
}

// NewMockGraphClient creates a new mock graph client for testing.
func NewMockGraphClient() *MockGraphClient {
	return &MockGraphClient{
		connected:    false,
		healthStatus: types.NewHealthStatus(types.HealthStateHealthy, "mock graph client"),
		calls:        make([]MockCall, 0),
		queryResults: make([]QueryResult, 0),
	}
}

func (m *MockGraphClient) record(method string, args ...interface{}) {
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// Connect records the call and simulates connection.
func (m *MockGraphClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Connect")

	if m.connectError != nil {
		return m.connectError
	}

	m.connected = true
	return nil
}

// Close records the call and simulates disconnection.
func (m *MockGraphClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Close")

	if m.closeError != nil {
		return m.closeError
	}

	m.connected = false
	return nil
}

// Health records the call and returns the configured health status.
func (m *MockGraphClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Health")

	if !m.connected {
		return types.Unhealthy("not connected")
	}

	return m.healthStatus
}

// Query records the call and returns the configured query results.
func (m *MockGraphClient) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Query", cypher, params)

	if !m.connected {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed,
			"not connected")
	}

	if m.queryError != nil {
		return QueryResult{}, m.queryError
	}

	// FIFO
	if len(m.queryResults) > 0 {
		result := m.queryResults[0]
		m.queryResults = m.queryResults[1:]
		return result, nil
	}

	return QueryResult{
		Records: []map[string]any{},
		Columns: []string{},
		Summary: QuerySummary{},
	}, nil
}

// Execute records the statement and returns the configured error, if any.
func (m *MockGraphClient) Execute(ctx context.Context, cypher string, params map[string]any) (QuerySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Execute", cypher, params)

	if !m.connected {
		return QuerySummary{}, types.NewError(ErrCodeGraphConnectionClosed,
			"not connected")
	}

	if m.executeErrorFunc != nil {
		if err := m.executeErrorFunc(cypher); err != nil {
			return QuerySummary{}, err
		}
	}

	m.executed = append(m.executed, Statement{Cypher: cypher, Params: params})
	return QuerySummary{Statements: 1}, nil
}

// Begin records the call and returns a batch that commits into the mock.
func (m *MockGraphClient) Begin(ctx context.Context) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Begin")

	if !m.connected {
		return nil, types.NewError(ErrCodeGraphConnectionClosed,
			"not connected")
	}

	return &mockBatch{client: m}, nil
}

type mockBatch struct {
	client     *MockGraphClient
	statements []Statement
	committed  bool
}

func (b *mockBatch) Append(cypher string, params map[string]any) {
	b.statements = append(b.statements, Statement{Cypher: cypher, Params: params})
}

func (b *mockBatch) Len() int {
	return len(b.statements)
}

func (b *mockBatch) Statements() []Statement {
	out := make([]Statement, len(b.statements))
	copy(out, b.statements)
	return out
}

func (b *mockBatch) Commit(ctx context.Context) (QuerySummary, error) {
	m := b.client
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("Commit", len(b.statements))

	if b.committed {
		return QuerySummary{}, types.NewError(ErrCodeGraphCommitFailed,
			"batch already committed")
	}
	b.committed = true

	if len(b.statements) == 0 {
		return QuerySummary{}, nil
	}

	attempt := m.commits
	m.commits++
	if m.commitErrorFunc != nil {
		if err := m.commitErrorFunc(attempt, b.Statements()); err != nil {
			return QuerySummary{}, err
		}
	}

	m.committed = append(m.committed, b.Statements())
	return QuerySummary{Statements: len(b.statements)}, nil
}

// SetQueryResults configures what Query() should return (FIFO queue).
func (m *MockGraphClient) SetQueryResults(results []QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryResults = results
}

// AddQueryResult adds a single query result to the queue.
func (m *MockGraphClient) AddQueryResult(result QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryResults = append(m.queryResults, result)
}

// SetHealthStatus configures what Health() should return.
func (m *MockGraphClient) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// SetConnectError configures Connect() to return an error.
func (m *MockGraphClient) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

// SetCloseError configures Close() to return an error.
func (m *MockGraphClient) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// SetQueryError configures Query() to return an error.
func (m *MockGraphClient) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryError = err
}

// SetExecuteError configures every Execute() call to return err.
func (m *MockGraphClient) SetExecuteError(err error) {
	m.SetExecuteErrorFunc(func(string) error { return err })
}

// SetExecuteErrorFunc configures Execute() to consult fn for each statement.
func (m *MockGraphClient) SetExecuteErrorFunc(fn func(cypher string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executeErrorFunc = fn
}

// SetCommitError configures every non-empty batch commit to return err.
func (m *MockGraphClient) SetCommitError(err error) {
	m.SetCommitErrorFunc(func(int, []Statement) error { return err })
}

// SetCommitErrorFunc configures batch commits to consult fn. attempt counts
// non-empty commits from zero, including failed ones.
func (m *MockGraphClient) SetCommitErrorFunc(fn func(attempt int, statements []Statement) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErrorFunc = fn
}

// GetCalls returns all recorded method calls.
func (m *MockGraphClient) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// GetCallsByMethod returns all calls to a specific method.
func (m *MockGraphClient) GetCallsByMethod(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, 0)
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// CallCount returns the total number of method calls.
func (m *MockGraphClient) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// Executed returns the statements accepted by Execute().
func (m *MockGraphClient) Executed() []Statement {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Statement, len(m.executed))
	copy(out, m.executed)
	return out
}

// CommittedBatches returns the statement lists of every successful commit.
func (m *MockGraphClient) CommittedBatches() [][]Statement {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]Statement, len(m.committed))
	copy(out, m.committed)
	return out
}

// CommittedStatements flattens every successful commit in order.
func (m *MockGraphClient) CommittedStatements() []Statement {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Statement
	for _, batch := range m.committed {
		out = append(out, batch...)
	}
	return out
}

// IsConnected returns whether the mock is in connected state.
func (m *MockGraphClient) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Reset clears all recorded calls and resets the mock to its initial state.
func (m *MockGraphClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.healthStatus = types.NewHealthStatus(types.HealthStateHealthy, "mock graph client")
	m.calls = make([]MockCall, 0)
	m.executed = nil
	m.committed = nil
	m.commits = 0
	m.queryResults = make([]QueryResult, 0)
	m.queryError = nil
	m.connectError = nil
	m.closeError = nil
	m.executeErrorFunc = nil
	m.commitErrorFunc = nil
}
