package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects in the local store",
	}
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectListCmd())
	return cmd
}

func newProjectAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>",
		Short: "Create a new active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			data, err := cc.Store.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("loading store: %w", err)
			}

			now := model.Now()
			p := &model.Project{
				Title:  args[0],
				Status: model.ProjectStatusActive,
			}
			p.ID = uuid.NewString()
			p.CreatedAt = now
			p.UpdatedAt = now

			data.Projects = append(data.Projects, p)
			if err := cc.Store.SaveAll(ctx, data); err != nil {
				return fmt.Errorf("saving store: %w", err)
			}

			cc.Statusf("created project %s\n", p.ID)
			return nil
		},
	}
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active and waiting projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			data, err := cc.Store.LoadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading store: %w", err)
			}

			headers := []string{"ID", "STATUS", "TITLE"}
			var rows [][]string
			for _, p := range data.Projects {
				if p.DeletedAt != nil || p.Status == model.ProjectStatusArchived {
					continue
				}
				rows = append(rows, []string{p.ID, string(p.Status), p.Title})
			}
			printTable(os.Stdout, headers, rows)
			return nil
		},
	}
}
