package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/graphsync/cmd/graphsync/internal"
	"github.com/zero-day-ai/graphsync/internal/config"
	"github.com/zero-day-ai/graphsync/internal/util"
	"github.com/zero-day-ai/graphsync/pkg/version"
)

// appConfig is loaded by loadConfig before every command that needs it.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "graphsync",
	Short: "graphsync - mirror MongoDB change streams into Neo4j",
	Long: `graphsync consumes a MongoDB change stream and mirrors every document
into a Neo4j graph. Nested objects become child nodes, arrays of objects
become ordered child nodes and references become relationships.

Run 'graphsync sync' to start the connector.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig is called before any command runs to load configuration
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	if flags.EnvFile != "" {
		if err := godotenv.Load(flags.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return internal.WrapError(internal.ExitConfigError, "failed to load "+flags.EnvFile, err)
		}
	}

	switch cmd.Name() {
	case "version", "help", "completion", "init":
		return nil
	}

	cfg, err := config.NewConfigLoader(config.NewValidator()).LoadWithDefaults(configPath())
	if err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

// configPath resolves --config, then --home / GRAPHSYNC_HOME, then the default.
func configPath() string {
	if globalFlags.ConfigFile != "" {
		return globalFlags.ConfigFile
	}
	homeDir := globalFlags.HomeDir
	if homeDir == "" {
		homeDir = os.Getenv("GRAPHSYNC_HOME")
	}
	if homeDir == "" {
		homeDir = config.DefaultHomeDir()
	}
	if expanded, err := util.ExpandHome(homeDir); err == nil {
		homeDir = expanded
	}
	return config.DefaultConfigPath(homeDir)
}

// formatter returns the output formatter selected by --output.
func formatter(cmd *cobra.Command) internal.Formatter {
	return internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(constraintsCmd)
	rootCmd.AddCommand(checkpointsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.String())
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for graphsync.

Bash:

  $ source <(graphsync completion bash)

Zsh:

  $ graphsync completion zsh > "${fpath[1]}/_graphsync"

Fish:

  $ graphsync completion fish | source
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}
