package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/graphsync/cmd/graphsync/internal"
	"github.com/zero-day-ai/graphsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage graphsync configuration",
	Long: `The config command provides subcommands for viewing, getting, setting,
and validating graphsync configuration settings.

Configuration is stored in YAML format at ~/.graphsync/config.yaml by default.
Every key can be overridden with a GRAPHSYNC_<SECTION>_<KEY> environment
variable, and string values may reference ${VAR}.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display full configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, err := marshalConfig(appConfig, format)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long: `Get the value of a specific configuration key.

Keys use dot notation to access nested values:
  graphsync config get sync.chunk_size
  graphsync config get neo4j.uri`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, err := lookupField(appConfig, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), formatValue(field))
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set the value of a specific configuration key and save the file.

  graphsync config set sync.chunk_size 500
  graphsync config set sync.auto_commit_interval 2s

The new configuration is validated before saving.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		field, err := lookupField(&cfg, args[0])
		if err != nil {
			return err
		}
		if err := setFieldValue(field, args[1]); err != nil {
			return internal.WrapError(internal.ExitUsageError, "invalid value for "+args[0], err)
		}
		if err := config.NewValidator().Validate(&cfg); err != nil {
			return internal.WrapError(internal.ExitConfigError, "validation failed after setting value", err)
		}
		if err := saveConfig(configPath(), &cfg); err != nil {
			return err
		}
		return formatter(cmd).PrintSuccess(fmt.Sprintf("set %s to %s", args[0], args[1]))
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return internal.NewCLIError(internal.ExitConfigError,
				fmt.Sprintf("config file does not exist: %s\nRun 'graphsync config init' to create one", path))
		}
		if _, err := config.NewConfigLoader(config.NewValidator()).Load(path); err != nil {
			return err
		}
		return formatter(cmd).PrintSuccess("configuration is valid")
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return internal.NewCLIError(internal.ExitConfigError,
				fmt.Sprintf("config file already exists: %s (use --force to overwrite)", path))
		}
		if err := saveConfig(path, config.DefaultConfig()); err != nil {
			return err
		}
		return formatter(cmd).PrintSuccess("wrote " + path)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().String("format", "yaml", "Output format (yaml or json)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

// marshalConfig renders cfg as yaml or json.
func marshalConfig(cfg *config.Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(cfg, "", "  ")
	case "yaml", "":
		return yaml.Marshal(cfg)
	default:
		return nil, internal.NewCLIError(internal.ExitUsageError,
			fmt.Sprintf("unsupported format: %s (use 'yaml' or 'json')", format))
	}
}

// lookupField resolves a dotted yaml key ("sync.chunk_size") to the
// addressable struct field it names.
func lookupField(cfg *config.Config, key string) (reflect.Value, error) {
	v := reflect.ValueOf(cfg).Elem()
	parts := strings.Split(key, ".")
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, internal.NewCLIError(internal.ExitUsageError,
				fmt.Sprintf("invalid configuration key: %s (at: %s)", key, part))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, internal.NewCLIError(internal.ExitUsageError,
				fmt.Sprintf("cannot traverse into non-struct field: %s", part))
		}
		v = field
	}
	return reflect.Value{}, internal.NewCLIError(internal.ExitUsageError, "empty configuration key")
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

var durationType = reflect.TypeOf(time.Duration(0))

// formatValue converts a reflect.Value to a string representation
func formatValue(v reflect.Value) string {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v.Interface())
	}
}

// setFieldValue sets a reflect.Value from a string
func setFieldValue(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported field type: %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// saveConfig writes cfg as yaml, creating the parent directory.
func saveConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to create config directory", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to write config file", err)
	}
	return nil
}
