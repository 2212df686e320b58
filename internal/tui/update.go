package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
)

// changedMsg is sent when the store changed on its own (remote feed)
type changedMsg struct{}

// opDoneMsg is sent when a store call finishes
type opDoneMsg struct {
	op  string
	err error
}

// Init starts listening for store changes
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

// waitForChange listens for change signals
func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// run calls the store off the UI goroutine
func (m Model) run(op string, call func(ctx context.Context, s TaskStore) error) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		return opDoneMsg{op: op, err: call(context.Background(), s)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changedMsg:
		m.reload()
		return m, m.waitForChange()

	case opDoneMsg:
		if msg.err != nil {
			logger.Warn("Store call failed", logger.F("op", msg.op), logger.F("error", msg.err))
			m.setError(fmt.Sprintf("Could not %s task: %v", msg.op, msg.err))
		} else {
			m.setMessage("")
		}
		m.reload()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd, ModeEdit:
			return m.updateInput(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Top):
		m.cursor = 0

	case key.Matches(msg, keys.Bottom):
		if len(m.tasks) > 0 {
			m.cursor = len(m.tasks) - 1
		}

	case key.Matches(msg, keys.Add):
		return m.startAdd()

	case key.Matches(msg, keys.Edit):
		return m.startEdit()

	case key.Matches(msg, keys.Toggle), key.Matches(msg, keys.Enter):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		return m, m.run("toggle", func(ctx context.Context, s TaskStore) error {
			return s.Toggle(ctx, task)
		})

	case key.Matches(msg, keys.Delete):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		return m, m.run("delete", func(ctx context.Context, s TaskStore) error {
			return s.Delete(ctx, task.ID)
		})

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Escape):
		m.setMessage("")
	}

	return m, nil
}

func (m Model) startAdd() (tea.Model, tea.Cmd) {
	m.mode = ModeAdd
	m.input.SetValue("")
	m.input.Placeholder = "Enter task..."
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) startEdit() (tea.Model, tea.Cmd) {
	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	m.mode = ModeEdit
	m.editingID = task.ID
	m.input.SetValue(task.Text)
	m.input.Placeholder = "Edit task..."
	m.input.Focus()
	m.input.CursorEnd()
	return m, textinput.Blink
}

func (m *Model) stopInput() {
	m.mode = ModeNormal
	m.editingID = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.stopInput()
		return m, nil

	case key.Matches(msg, keys.Enter):
		text, err := model.NormalizeText(m.input.Value())
		if errors.Is(err, model.ErrEmptyText) {
			// keep the input open until there is something to save
			return m, nil
		}

		var cmd tea.Cmd
		switch m.mode {
		case ModeAdd:
			cmd = m.run("add", func(ctx context.Context, s TaskStore) error {
				return s.Add(ctx, text)
			})
		case ModeEdit:
			id := m.editingID
			cmd = m.run("update", func(ctx context.Context, s TaskStore) error {
				return s.Update(ctx, id, text)
			})
		}
		m.stopInput()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
