package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/irontodo/internal/model"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a new task",
	Long: `Add a new task. Words after 'add' are joined into the task text.

Examples:
  irontodo add "Buy groceries"
  irontodo add Call the dentist`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	text, err := model.NormalizeText(strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("nothing to add: %w", err)
	}

	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, cfg, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.tasks.Add(ctx, text); err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}

	out := cmd.OutOrStdout()
	if ws.Remote() {
		fmt.Fprintf(out, "✓ Sent: \"%s\"\n", text)
		return nil
	}
	fmt.Fprintf(out, "✓ Added: \"%s\"\n", text)
	return nil
}
