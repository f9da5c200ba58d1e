package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recent sync cycle results",
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	data, err := cc.Store.LoadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	history := data.Settings.LastSyncHistory
	if len(history) == 0 {
		fmt.Println("no sync history yet")
		return nil
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	headers := []string{"WHEN", "STATUS", "CONFLICTS", "SKEW(ms)", "ERROR"}
	rows := make([][]string, 0, len(history))
	for _, h := range history {
		errText := ""
		if h.Error != nil {
			errText = *h.Error
		}
		rows = append(rows, []string{
			formatTime(h.At.Time()),
			h.Status,
			fmt.Sprintf("%d", h.Conflicts),
			fmt.Sprintf("%d", h.MaxClockSkewMs),
			errText,
		})
	}
	printTable(os.Stdout, headers, rows)
	return nil
}
