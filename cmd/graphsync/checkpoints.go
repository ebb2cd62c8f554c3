package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/graphsync/internal/checkpoint"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List stored change-feed positions",
	Long: `List the position reached per namespace. The store is locked while
'graphsync sync' runs; use the admin API's /api/v1/checkpoints then.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := checkpoint.Open(appConfig.Checkpoint.StoreOptions())
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, cp := range list {
			rows = append(rows, []string{
				cp.Namespace,
				strconv.FormatInt(cp.Timestamp, 10),
				strconv.FormatBool(len(cp.ResumeToken) > 0),
				cp.UpdatedAt.Format(time.RFC3339),
			})
		}
		return formatter(cmd).PrintTable([]string{"namespace", "ts", "resumable", "updated"}, rows, list)
	},
}
