package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks in the local store",
	}
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskSearchCmd())
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>",
		Short: "Create a new inbox task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			data, err := cc.Store.LoadAll(ctx)
			if err != nil {
				return fmt.Errorf("loading store: %w", err)
			}

			now := model.Now()
			task := &model.Task{
				Title:  args[0],
				Status: model.TaskStatusInbox,
			}
			task.ID = uuid.NewString()
			task.CreatedAt = now
			task.UpdatedAt = now

			data.Tasks = append(data.Tasks, task)
			if err := cc.Store.SaveAll(ctx, data); err != nil {
				return fmt.Errorf("saving store: %w", err)
			}

			cc.Statusf("created task %s\n", task.ID)
			return nil
		},
	}
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks that are not done, archived, or deleted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			data, err := cc.Store.LoadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading store: %w", err)
			}

			headers := []string{"ID", "STATUS", "TITLE"}
			var rows [][]string
			for _, t := range data.Tasks {
				if t.DeletedAt != nil || t.Status == model.TaskStatusDone || t.Status == model.TaskStatusArchived {
					continue
				}
				rows = append(rows, []string{t.ID, string(t.Status), t.Title})
			}
			printTable(os.Stdout, headers, rows)
			return nil
		},
	}
}

func newTaskSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search tasks and projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			results, err := cc.Store.SearchAll(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			headers := []string{"TYPE", "ID", "TITLE"}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Kind, r.ID, r.Title})
			}
			printTable(os.Stdout, headers, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results per kind (tasks, projects)")
	return cmd
}
