package config

import (
	"github.com/zero-day-ai/graphsync/internal/checkpoint"
	"github.com/zero-day-ai/graphsync/internal/docmanager"
	"github.com/zero-day-ai/graphsync/internal/graph"
)

// GraphClientConfig maps the neo4j section onto the graph client settings.
func (c Neo4jConfig) GraphClientConfig() graph.GraphClientConfig {
	return graph.GraphClientConfig{
		URI:                     c.URI,
		Username:                c.Username,
		Password:                c.Password,
		Database:                c.Database,
		MaxConnectionPoolSize:   c.MaxConnections,
		ConnectionTimeout:       c.ConnectionTimeout,
		MaxTransactionRetryTime: c.MaxRetryTime,
	}
}

// DocManagerConfig maps the sync section onto the DocManager settings.
func (c SyncConfig) DocManagerConfig() docmanager.Config {
	return docmanager.Config{
		UniqueKey:          c.UniqueKey,
		ChunkSize:          c.ChunkSize,
		AutoCommitInterval: c.AutoCommitInterval,
		RemoveScope:        docmanager.RemoveScope(c.RemoveScope),
		CascadeRemove:      c.CascadeRemove,
	}
}

// StoreOptions maps the checkpoint section onto the badger store options.
func (c CheckpointConfig) StoreOptions() checkpoint.Options {
	return checkpoint.Options{
		Path:     c.Path,
		InMemory: c.InMemory,
	}
}
