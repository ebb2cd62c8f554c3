package config

import (
	"path/filepath"
	"time"

	"github.com/zero-day-ai/graphsync/internal/observability"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Neo4j: Neo4jConfig{
			URI:               "bolt://localhost:7687",
			Username:          "neo4j",
			Password:          "password",
			MaxConnections:    50,
			ConnectionTimeout: 30 * time.Second,
			MaxRetryTime:      30 * time.Second,
		},
		Mongo: MongoConfig{
			URI: "mongodb://localhost:27017",
		},
		Sync: SyncConfig{
			UniqueKey:   "_id",
			ChunkSize:   1000,
			RemoveScope: "label",
		},
		Constraints: ConstraintsConfig{
			Registry: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "graphsync:constraints",
			},
		},
		Checkpoint: CheckpointConfig{
			Path: filepath.Join(homeDir, "checkpoints"),
		},
		API: APIConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8088",
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracing: observability.TracingConfig{
			Enabled:     false,
			Provider:    "otlp",
			ServiceName: "graphsync",
			SampleRate:  1.0,
		},
		Metrics: observability.MetricsConfig{
			Enabled:  false,
			Provider: "prometheus",
		},
	}
}
