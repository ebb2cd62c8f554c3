package graph

import (
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// Graph database error codes
const (
	// Connection errors
	ErrCodeGraphConnectionFailed types.ErrorCode = "GRAPH_CONNECTION_FAILED"
	ErrCodeGraphConnectionClosed types.ErrorCode = "GRAPH_CONNECTION_CLOSED"

	// Configuration errors
	ErrCodeGraphInvalidConfig types.ErrorCode = "GRAPH_INVALID_CONFIG"

	// Query errors
	ErrCodeGraphQueryFailed   types.ErrorCode = "GRAPH_QUERY_FAILED"
	ErrCodeGraphExecuteFailed types.ErrorCode = "GRAPH_EXECUTE_FAILED"
	ErrCodeGraphCommitFailed  types.ErrorCode = "GRAPH_COMMIT_FAILED"

	// Schema errors
	ErrCodeGraphSchemaExists types.ErrorCode = "GRAPH_SCHEMA_EXISTS"
)

// Neo4j status codes reported when a schema rule is created twice.
var schemaExistsCodes = map[string]bool{
	"Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists": true,
	"Neo.ClientError.Schema.ConstraintAlreadyExists":           true,
	"Neo.ClientError.Schema.IndexAlreadyExists":                true,
	"Neo.ClientError.Schema.ConstraintWithNameAlreadyExists":   true,
}

// IsSchemaAlreadyExists reports whether err says that a constraint or index
// already exists. Older servers without IF NOT EXISTS support answer that way.
func IsSchemaAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var syncErr *types.SyncError
	if errors.As(err, &syncErr) && syncErr.Code == ErrCodeGraphSchemaExists {
		return true
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return schemaExistsCodes[neoErr.Code]
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// classifyExecuteError maps a driver error from a schema or write statement
// onto the graph error codes.
func classifyExecuteError(err error) error {
	if IsSchemaAlreadyExists(err) {
		return types.WrapError(ErrCodeGraphSchemaExists, "schema rule already exists", err)
	}
	if neo4j.IsRetryable(err) {
		return types.WrapRetryableError(ErrCodeGraphExecuteFailed, "statement execution failed", err)
	}
	return types.WrapError(ErrCodeGraphExecuteFailed, "statement execution failed", err)
}
