package config

import (
	"time"

	"github.com/zero-day-ai/graphsync/internal/observability"
)

// Config is the root configuration for graphsync.
type Config struct {
	Neo4j       Neo4jConfig                 `mapstructure:"neo4j" yaml:"neo4j" validate:"required"`
	Mongo       MongoConfig                 `mapstructure:"mongo" yaml:"mongo"`
	Sync        SyncConfig                  `mapstructure:"sync" yaml:"sync"`
	Constraints ConstraintsConfig           `mapstructure:"constraints" yaml:"constraints"`
	Checkpoint  CheckpointConfig            `mapstructure:"checkpoint" yaml:"checkpoint"`
	API         APIConfig                   `mapstructure:"api" yaml:"api"`
	Logging     observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing     observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics     observability.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Neo4jConfig contains Neo4j connection settings.
type Neo4jConfig struct {
	URI               string        `mapstructure:"uri" yaml:"uri" validate:"required"`
	Username          string        `mapstructure:"username" yaml:"username" validate:"required"`
	Password          string        `mapstructure:"password" yaml:"password" validate:"required"`
	Database          string        `mapstructure:"database" yaml:"database"`
	MaxConnections    int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=500"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout" validate:"min=1s"`
	MaxRetryTime      time.Duration `mapstructure:"max_retry_time" yaml:"max_retry_time"`
}

// MongoConfig describes the change-feed source.
type MongoConfig struct {
	URI string `mapstructure:"uri" yaml:"uri"`

	// Namespaces limits syncing to these "db.collection" names.
	// Empty watches the whole deployment.
	Namespaces []string `mapstructure:"namespaces" yaml:"namespaces"`

	// FullDocument asks the change stream for post-images of updates,
	// which are then applied as replacements.
	FullDocument bool `mapstructure:"full_document" yaml:"full_document"`

	// DumpOnStart bulk-loads every namespace before tailing when no
	// checkpoint exists.
	DumpOnStart bool `mapstructure:"dump_on_start" yaml:"dump_on_start"`
}

// SyncConfig controls the DocManager.
type SyncConfig struct {
	UniqueKey          string        `mapstructure:"unique_key" yaml:"unique_key" validate:"required"`
	ChunkSize          int           `mapstructure:"chunk_size" yaml:"chunk_size" validate:"min=1"`
	AutoCommitInterval time.Duration `mapstructure:"auto_commit_interval" yaml:"auto_commit_interval"`
	RemoveScope        string        `mapstructure:"remove_scope" yaml:"remove_scope" validate:"oneof=label any"`
	CascadeRemove      bool          `mapstructure:"cascade_remove" yaml:"cascade_remove"`
	SkipMalformed      bool          `mapstructure:"skip_malformed" yaml:"skip_malformed"`
}

// ConstraintsConfig selects where created uniqueness constraints are remembered.
type ConstraintsConfig struct {
	Registry string      `mapstructure:"registry" yaml:"registry" validate:"oneof=memory redis"`
	Redis    RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig contains the shared constraint registry connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db" validate:"min=0"`
	Key      string `mapstructure:"key" yaml:"key"`
}

// CheckpointConfig locates the resume-point store.
type CheckpointConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	InMemory bool   `mapstructure:"in_memory" yaml:"in_memory"`
}

// APIConfig contains the admin HTTP API settings.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}
