package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/existflow/irontodo/internal/model"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks in display order.

Examples:
  irontodo list
  irontodo ls --pending`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listPending bool

func init() {
	listCmd.Flags().BoolVar(&listPending, "pending", false, "Hide completed tasks")
}

func runList(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context(), cfg, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	tasks := ws.tasks.List()
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found. Add one with: irontodo add \"Your task\"")
		return nil
	}

	printTasks(out, ws.label, tasks, listPending)
	return nil
}

func printTasks(w io.Writer, source string, tasks []model.Task, pendingOnly bool) {
	pending := 0
	for _, t := range tasks {
		if !t.Completed {
			pending++
		}
	}

	fmt.Fprintf(w, "\n📋 %s (%d pending, %d total)\n", source, pending, len(tasks))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, t := range tasks {
		if pendingOnly && t.Completed {
			continue
		}
		printTask(w, t)
	}
	fmt.Fprintln(w)
}

func printTask(w io.Writer, t model.Task) {
	icon := "[ ]"
	if t.Completed {
		icon = "[x]"
	}

	// Truncate text if too long
	text := []rune(t.Text)
	if len(text) > 44 {
		text = append(text[:41], []rune("...")...)
	}

	fmt.Fprintf(w, "  %s  %-13s  %s\n", icon, shortID(t.ID), string(text))
}
