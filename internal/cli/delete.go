package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Long: `Delete a task by its ID. Any unique id prefix works.

Examples:
  irontodo delete 3f2a9c1e
  irontodo rm 3f2a9c1e --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var deleteForce bool

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without asking")
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	if cfg.ConfirmDelete && !deleteForce {
		fmt.Fprintf(out, "About to delete: \"%s\" (ID: %s)\n", task.Text, task.ID)
		if !confirm(cmd.InOrStdin(), out, "Are you sure? [y/N]: ") {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := ws.tasks.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	fmt.Fprintf(out, "🗑️  Deleted: \"%s\"\n", task.Text)
	return nil
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
