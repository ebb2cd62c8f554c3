package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/graphsync/cmd/graphsync/internal"
)

// GlobalFlags holds global flags available to all commands
type GlobalFlags struct {
	Verbose      bool
	Quiet        bool
	OutputFormat string
	ConfigFile   string
	HomeDir      string
	EnvFile      string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command
func RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to config file (default: $GRAPHSYNC_HOME/config.yaml)")
	cmd.PersistentFlags().StringVar(&globalFlags.HomeDir, "home", "", "graphsync home directory (default: ~/.graphsync)")
	cmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", ".env", "dotenv file loaded before the config (ignored when absent)")
}

// ParseGlobalFlags validates global flags
func ParseGlobalFlags(cmd *cobra.Command) (*GlobalFlags, error) {
	format := internal.OutputFormat(globalFlags.OutputFormat)
	if format != internal.FormatText && format != internal.FormatJSON {
		return nil, internal.NewCLIError(internal.ExitUsageError,
			fmt.Sprintf("unknown output format %q (use text or json)", globalFlags.OutputFormat))
	}

	if globalFlags.Verbose && globalFlags.Quiet {
		return nil, internal.NewCLIError(internal.ExitUsageError, "--verbose and --quiet cannot be used together")
	}

	return globalFlags, nil
}

// GetOutputFormat returns the parsed OutputFormat enum
func (f *GlobalFlags) GetOutputFormat() internal.OutputFormat {
	if f.OutputFormat == string(internal.FormatJSON) {
		return internal.FormatJSON
	}
	return internal.FormatText
}

// IsVerbose returns true if verbose mode is enabled
func (f *GlobalFlags) IsVerbose() bool {
	return f.Verbose && !f.Quiet
}

// IsQuiet returns true if quiet mode is enabled
func (f *GlobalFlags) IsQuiet() bool {
	return f.Quiet
}
