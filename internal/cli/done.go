package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Toggle a task between done and pending",
	Long: `Flip the completed flag of a task. Any unique id prefix works.

Examples:
  irontodo done 1718000000000
  irontodo done 3f2a9c1e`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

func runDone(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, cfg, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	task, err := resolveTask(ws.tasks.List(), args[0])
	if err != nil {
		return err
	}

	if err := ws.tasks.Toggle(ctx, task); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	out := cmd.OutOrStdout()
	if task.Completed {
		fmt.Fprintf(out, "○ Reopened: \"%s\"\n", task.Text)
	} else {
		fmt.Fprintf(out, "✓ Completed: \"%s\"\n", task.Text)
	}
	return nil
}
