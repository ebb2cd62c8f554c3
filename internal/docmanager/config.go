package docmanager

import (
	"fmt"
	"time"

	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// DefaultChunkSize is the number of documents per BulkUpsert transaction.
const DefaultChunkSize = 1000

// RemoveScope selects which root node Remove deletes.
type RemoveScope string

const (
	// RemoveScopeLabel deletes (:Document:<Label> {_id}) only.
	RemoveScopeLabel RemoveScope = "label"
	// RemoveScopeAny deletes every (:Document {_id}) regardless of its doc type.
	RemoveScopeAny RemoveScope = "any"
)

// Config controls how a DocManager writes.
type Config struct {
	// UniqueKey is the identifier field of source documents.
	UniqueKey string

	// ChunkSize bounds the number of documents pulled per bulk transaction.
	ChunkSize int

	// AutoCommitInterval buffers writes and flushes them on this schedule.
	// Zero commits every operation immediately.
	AutoCommitInterval time.Duration

	RemoveScope RemoveScope

	// CascadeRemove also deletes the synthesized child nodes of a removed
	// document.
	CascadeRemove bool
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		UniqueKey:   document.DefaultUniqueKey,
		ChunkSize:   DefaultChunkSize,
		RemoveScope: RemoveScopeLabel,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.UniqueKey == "" {
		c.UniqueKey = def.UniqueKey
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.RemoveScope == "" {
		c.RemoveScope = def.RemoveScope
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("chunk size must be positive, got %d", c.ChunkSize))
	}
	if c.AutoCommitInterval < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("auto-commit interval must not be negative, got %s", c.AutoCommitInterval))
	}
	switch c.RemoveScope {
	case RemoveScopeLabel, RemoveScopeAny:
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown remove scope %q", c.RemoveScope))
	}
	return nil
}
