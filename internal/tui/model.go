package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeEdit
	ModeHelp
)

// Model is the main TUI model
type Model struct {
	store   TaskStore
	tasks   []model.Task
	changes <-chan struct{} // Signals that the store changed on its own

	// UI state
	width  int
	height int
	mode   Mode
	cursor int

	// editingID is the task being edited in ModeEdit
	editingID string

	// Input
	input textinput.Model

	source  string // Shown in the status bar, e.g. "local"
	message string
	failed  bool // message reports an error
}

// Option configures a Model
type Option func(*Model)

// WithChanges makes the view reload whenever changes signals
func WithChanges(changes <-chan struct{}) Option {
	return func(m *Model) { m.changes = changes }
}

// WithSource sets the backend label shown in the status bar
func WithSource(source string) Option {
	return func(m *Model) { m.source = source }
}

// NewModel creates a new TUI model
func NewModel(store TaskStore, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter task..."
	ti.CharLimit = 256
	ti.Width = 50

	m := Model{
		store: store,
		mode:  ModeNormal,
		input: ti,
	}
	for _, opt := range opts {
		opt(&m)
	}

	m.reload()
	logger.Debug("TUI model initialized", logger.F("tasks", len(m.tasks)), logger.F("source", m.source))
	return m
}

// reload copies the store's list and keeps the cursor in range
func (m *Model) reload() {
	m.tasks = m.store.List()
	if m.cursor >= len(m.tasks) {
		m.cursor = len(m.tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	if m.mode == ModeEdit && model.IndexOf(m.tasks, m.editingID) < 0 {
		m.mode = ModeNormal
		m.editingID = ""
		m.input.Blur()
		m.setMessage("The task being edited was deleted")
	}
}

func (m *Model) currentTask() (model.Task, bool) {
	if m.cursor < len(m.tasks) {
		return m.tasks[m.cursor], true
	}
	return model.Task{}, false
}

func (m *Model) setMessage(msg string) {
	m.message = msg
	m.failed = false
}

func (m *Model) setError(msg string) {
	m.message = msg
	m.failed = true
}

// Tasks returns the list as currently displayed
func (m Model) Tasks() []model.Task {
	return m.tasks
}

// Mode returns the current UI mode
func (m Model) Mode() Mode {
	return m.mode
}
