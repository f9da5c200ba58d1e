package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statusJSON is the JSON-serializable representation of "status".
type statusJSON struct {
	SyncBackend string  `json:"syncBackend"`
	LastSyncAt  string  `json:"lastSyncAt,omitempty"`
	Status      string  `json:"lastSyncStatus,omitempty"`
	Error       *string `json:"lastSyncError,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last sync result",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	data, err := cc.Store.LoadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	st := statusJSON{SyncBackend: string(cc.Config.SyncBackend)}
	if data.Settings.LastSyncAt != nil {
		st.LastSyncAt = data.Settings.LastSyncAt.Time().Format("Mon Jan 2 15:04:05")
	}
	if data.Settings.LastSyncStatus != nil {
		st.Status = *data.Settings.LastSyncStatus
	}
	st.Error = data.Settings.LastSyncError

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Printf("backend:    %s\n", st.SyncBackend)
	if st.LastSyncAt == "" {
		fmt.Println("last sync:  never")
		return nil
	}
	fmt.Printf("last sync:  %s (%s)\n", st.LastSyncAt, st.Status)
	if st.Error != nil {
		fmt.Printf("last error: %s\n", *st.Error)
	}
	return nil
}
