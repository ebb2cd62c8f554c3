package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/zero-day-ai/graphsync/internal/types"
	"github.com/zero-day-ai/graphsync/internal/util"
)

// EnvPrefix prefixes environment overrides, e.g. GRAPHSYNC_NEO4J_URI.
const EnvPrefix = "GRAPHSYNC"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	return &viperConfigLoader{
		validator: validator,
	}
}

// Load loads configuration from the specified file path.
// Keys missing from the file keep their DefaultConfig values.
// Returns an error if the file doesn't exist or cannot be parsed.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, types.WrapError(types.CONFIG_NOT_FOUND, fmt.Sprintf("config file %s not found", path), err)
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	return l.decode(v)
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration with
// environment overrides applied.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return l.decode(newViper())
	}
	return l.Load(path)
}

func (l *viperConfigLoader) decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}

	applyInterpolation(&cfg)
	if err := expandPaths(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to expand configuration paths", err)
	}

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}

	return &cfg, nil
}

// newViper returns a viper instance seeded with DefaultConfig and bound to
// GRAPHSYNC_* environment variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	defaults := map[string]any{
		"neo4j.uri":                  def.Neo4j.URI,
		"neo4j.username":             def.Neo4j.Username,
		"neo4j.password":             def.Neo4j.Password,
		"neo4j.database":             def.Neo4j.Database,
		"neo4j.max_connections":      def.Neo4j.MaxConnections,
		"neo4j.connection_timeout":   def.Neo4j.ConnectionTimeout,
		"neo4j.max_retry_time":       def.Neo4j.MaxRetryTime,
		"mongo.uri":                  def.Mongo.URI,
		"mongo.namespaces":           def.Mongo.Namespaces,
		"mongo.full_document":        def.Mongo.FullDocument,
		"mongo.dump_on_start":        def.Mongo.DumpOnStart,
		"sync.unique_key":            def.Sync.UniqueKey,
		"sync.chunk_size":            def.Sync.ChunkSize,
		"sync.auto_commit_interval":  def.Sync.AutoCommitInterval,
		"sync.remove_scope":          def.Sync.RemoveScope,
		"sync.cascade_remove":        def.Sync.CascadeRemove,
		"sync.skip_malformed":        def.Sync.SkipMalformed,
		"constraints.registry":       def.Constraints.Registry,
		"constraints.redis.addr":     def.Constraints.Redis.Addr,
		"constraints.redis.password": def.Constraints.Redis.Password,
		"constraints.redis.db":       def.Constraints.Redis.DB,
		"constraints.redis.key":      def.Constraints.Redis.Key,
		"checkpoint.path":            def.Checkpoint.Path,
		"checkpoint.in_memory":       def.Checkpoint.InMemory,
		"api.enabled":                def.API.Enabled,
		"api.addr":                   def.API.Addr,
		"logging.level":              def.Logging.Level,
		"logging.format":             def.Logging.Format,
		"logging.output":             def.Logging.Output,
		"tracing.enabled":            def.Tracing.Enabled,
		"tracing.provider":           def.Tracing.Provider,
		"tracing.endpoint":           def.Tracing.Endpoint,
		"tracing.service_name":       def.Tracing.ServiceName,
		"tracing.sample_rate":        def.Tracing.SampleRate,
		"tracing.tls_cert_file":      def.Tracing.TLSCertFile,
		"tracing.tls_key_file":       def.Tracing.TLSKeyFile,
		"tracing.insecure_mode":      def.Tracing.InsecureMode,
		"metrics.enabled":            def.Metrics.Enabled,
		"metrics.provider":           def.Metrics.Provider,
		"metrics.endpoint":           def.Metrics.Endpoint,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables are left as written.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}

// applyInterpolation expands ${VAR} references in the string fields that
// commonly carry secrets or deployment-specific addresses.
func applyInterpolation(cfg *Config) {
	for _, field := range []*string{
		&cfg.Neo4j.URI,
		&cfg.Neo4j.Username,
		&cfg.Neo4j.Password,
		&cfg.Neo4j.Database,
		&cfg.Mongo.URI,
		&cfg.Constraints.Redis.Addr,
		&cfg.Constraints.Redis.Password,
		&cfg.Checkpoint.Path,
		&cfg.API.Addr,
		&cfg.Logging.Output,
		&cfg.Tracing.Endpoint,
		&cfg.Metrics.Endpoint,
	} {
		*field = interpolateString(*field)
	}
	for i, ns := range cfg.Mongo.Namespaces {
		cfg.Mongo.Namespaces[i] = interpolateString(ns)
	}
}

// expandPaths resolves ~ in the checkpoint directory and a file log output.
func expandPaths(cfg *Config) error {
	path, err := util.ExpandHome(cfg.Checkpoint.Path)
	if err != nil {
		return err
	}
	cfg.Checkpoint.Path = path

	if !util.IsStdStream(cfg.Logging.Output) {
		output, err := util.ExpandHome(cfg.Logging.Output)
		if err != nil {
			return err
		}
		cfg.Logging.Output = output
	}
	return nil
}
