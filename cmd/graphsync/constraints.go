package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var constraintsCmd = &cobra.Command{
	Use:   "constraints",
	Short: "Manage node uniqueness constraints",
}

var constraintsEnsureCmd = &cobra.Command{
	Use:   "ensure <label>...",
	Short: "Create uniqueness constraints on (label, _id)",
	Long: `Create the uniqueness constraint the connector needs for each label.
Labels already recorded in the constraint registry are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		created, err := rt.constraints.Ensure(cmd.Context(), args)
		if err != nil {
			return err
		}
		return formatter(cmd).PrintSuccess(fmt.Sprintf("%d constraint(s) created, %d already present", created, len(args)-created))
	},
}

var constraintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List labels recorded in the constraint registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		labels, err := rt.registry.Labels(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(labels))
		for _, label := range labels {
			rows = append(rows, []string{label})
		}
		return formatter(cmd).PrintTable([]string{"label"}, rows, labels)
	},
}

func init() {
	constraintsCmd.AddCommand(constraintsEnsureCmd)
	constraintsCmd.AddCommand(constraintsListCmd)
}
