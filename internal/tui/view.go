package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const emptyHint = "No tasks yet. Press 'a' to add one."

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	mainContent := m.renderTaskList()

	if m.mode == ModeAdd {
		mainContent = lipgloss.Place(
			m.width, m.height-2,
			lipgloss.Center, lipgloss.Center,
			m.renderModal(),
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	if m.mode == ModeHelp {
		mainContent = m.renderHelp()
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, m.renderStatusBar())
}

func (m Model) renderTaskList() string {
	width := max(m.width-4, 20)
	var s strings.Builder

	pending := 0
	for _, t := range m.tasks {
		if !t.Completed {
			pending++
		}
	}
	header := fmt.Sprintf("IronTodo (%d pending, %d total)", pending, len(m.tasks))
	s.WriteString(HeaderStyle.Render(header) + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", width-4)) + "\n\n")

	if len(m.tasks) == 0 {
		s.WriteString(HelpStyle.Render("  " + emptyHint))
	}

	textWidth := max(width-12, 10)
	for i, t := range m.tasks {
		cursor := "  "
		style := TaskItemStyle
		if i == m.cursor {
			cursor = "❯ "
			style = TaskItemSelectedStyle
		}

		icon := "[ ]"
		if t.Completed {
			icon = CheckDoneStyle.Render("[x]")
			style = TaskDoneStyle
		}

		if m.mode == ModeEdit && t.ID == m.editingID {
			s.WriteString(cursor + icon + " " + m.input.View() + "\n")
			continue
		}

		s.WriteString(cursor + icon + style.Render(truncate(t.Text, textWidth)) + "\n")
	}

	return TaskListStyle.Width(width).Height(m.height - 2).Render(s.String())
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.mode == ModeEdit:
		left = "Enter:save  Esc:cancel"
	case m.message != "" && m.failed:
		left = ErrorStyle.Render(m.message)
	case m.message != "":
		left = m.message
	default:
		left = "a:add  e:edit  x:done  d:del  j/k:move  ?:help  q:quit"
	}

	right := ""
	if m.source != "" {
		right = m.source
	}

	if right != "" {
		avail := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
		if avail > 0 {
			left += strings.Repeat(" ", avail) + right
		} else {
			left += " " + right
		}
	}

	return StatusBarStyle.Width(m.width).Render(left)
}

func (m Model) renderModal() string {
	content := lipgloss.NewStyle().Bold(true).Render("Add Task") + "\n\n"
	content += m.input.View() + "\n\n"
	content += HelpStyle.Render("Enter:save  Esc:cancel")

	return ModalStyle.Render(content)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓     Move down       │
│  k/↑     Move up         │
│  g/G     Top / bottom    │
│                          │
│  Actions                 │
│  ───────                 │
│  a       Add task        │
│  e       Edit task       │
│  x/Space Toggle done     │
│  d       Delete          │
│  Enter   Save input      │
│  Esc     Cancel input    │
│                          │
│  Other                   │
│  ─────                   │
│  ?       Toggle help     │
│  q       Quit            │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, help)
}
