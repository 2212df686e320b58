package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/irontodo/internal/model"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [task-id] [text]",
	Short: "Replace the text of a task",
	Long: `Replace the text of a task. Any unique id prefix works.

Examples:
  irontodo edit 3f2a9c1e "Buy oat milk"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	text, err := model.NormalizeText(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

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

	if err := ws.tasks.Update(ctx, task.ID, text); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✎ Updated: \"%s\" → \"%s\"\n", task.Text, text)
	return nil
}
