package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List registered backup tasks",
	RunE:  runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	tasks, err := store.TaskStore().ListTasks(context.Background())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		cmd.Println("No backup tasks registered.")
		return nil
	}

	cmd.Printf("%-6s %-40s %-9s %-8s %-6s %-10s %s\n",
		"ID", "SOURCE", "FREQ", "PROVIDER", "LIMIT", "NEXT RUN", "ACTIVE")
	for _, task := range tasks {
		nextRun := "-"
		if !task.NextRun.IsZero() {
			nextRun = task.NextRun.Format("2006-01-02")
		}
		cmd.Printf("%-6d %-40s %-9s %-8s %-6d %-10s %v\n",
			task.ID, task.SourcePath, task.Frequency, task.ProviderID,
			task.BackupLimit, nextRun, task.IsActive)
	}
	return nil
}
