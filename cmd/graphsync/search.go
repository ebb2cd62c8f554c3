package main

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/graphsync/cmd/graphsync/internal"
	"github.com/zero-day-ai/graphsync/internal/docmanager"
)

var searchFlags struct {
	start int64
	end   int64
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List synced documents by _ts range",
	Long: `List the root nodes whose _ts lies in [--start, --end], ordered by
timestamp. Timestamps are change-feed positions (seconds << 32 | increment).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if searchFlags.start > searchFlags.end {
			return internal.NewCLIError(internal.ExitUsageError, "--start must not exceed --end")
		}

		rt, err := newRuntime(cmd.Context(), appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		records, err := rt.docs.Search(cmd.Context(), searchFlags.start, searchFlags.end)
		if err != nil {
			return err
		}
		return printRecords(cmd, records)
	},
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recently synced document",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		record, err := rt.docs.GetLastDoc(cmd.Context())
		if err != nil {
			return err
		}
		if record == nil {
			return internal.NewCLIError(internal.ExitError, "no documents synced")
		}
		return printRecords(cmd, []docmanager.RootRecord{*record})
	},
}

var getCmd = &cobra.Command{
	Use:     "get <namespace> <id>",
	Short:   "Show the root node of one document",
	Example: `  graphsync get shop.orders 64f1c0ffee`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		record, err := rt.docs.Get(cmd.Context(), args[1], args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return internal.NewCLIError(internal.ExitError, "document "+args[1]+" not found in "+args[0])
		}
		return printRecords(cmd, []docmanager.RootRecord{*record})
	},
}

func init() {
	searchCmd.Flags().Int64Var(&searchFlags.start, "start", 0, "Lowest _ts (inclusive)")
	searchCmd.Flags().Int64Var(&searchFlags.end, "end", int64(^uint64(0)>>1), "Highest _ts (inclusive)")
}

func printRecords(cmd *cobra.Command, records []docmanager.RootRecord) error {
	if records == nil {
		records = []docmanager.RootRecord{}
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		props, err := json.Marshal(r.Properties)
		if err != nil {
			return err
		}
		rows = append(rows, []string{r.Label, r.ID, strconv.FormatInt(r.Timestamp, 10), string(props)})
	}
	return formatter(cmd).PrintTable([]string{"label", "id", "ts", "properties"}, rows, records)
}
