package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentmitra/portalctl/internal/dataimport"
)

// WizardModel drives a dataimport.Wizard from the terminal. Every wizard
// call runs inside a tea.Cmd so the UI stays responsive while files are
// parsed and imports are sent.
type WizardModel struct {
	ctx       context.Context
	wizard    *dataimport.Wizard
	path      string
	opts      dataimport.Options
	templates []dataimport.ImportTemplate

	// cursor 0 is "no template"; i+1 is templates[i].
	cursor int

	progressCh chan dataimport.Progress
	last       *dataimport.Progress

	busy     bool
	err      error
	quitting bool
	width    int

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    wizardKeys
	styles  Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Border      lipgloss.Style
	Highlighted lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")). // Purple
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		Highlighted: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
	}
}

type wizardKeys struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Back   key.Binding
	Reset  key.Binding
	Quit   key.Binding
	Toggle key.Binding
}

func defaultKeys() wizardKeys {
	return wizardKeys{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue")),
		Back:   key.NewBinding(key.WithKeys("esc", "b"), key.WithHelp("esc/b", "back")),
		Reset:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "start over")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Toggle: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

// ShortHelp implements help.KeyMap.
func (k wizardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Back, k.Quit, k.Toggle}
}

// FullHelp implements help.KeyMap.
func (k wizardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Enter}, {k.Back, k.Reset, k.Quit}}
}

// Messages produced by the wizard commands.
type (
	fileLoadedMsg struct {
		file *dataimport.ImportFile
		err  error
	}
	validatedMsg struct {
		result *dataimport.ImportResult
		err    error
	}
	importedMsg struct {
		result *dataimport.ImportResult
		err    error
	}
	progressMsg dataimport.Progress
)

// NewWizardModel builds the model for importing path. templates are the
// choices offered at template selection. observers also receive every
// progress snapshot, for metrics.
func NewWizardModel(ctx context.Context, w *dataimport.Wizard, path string, opts dataimport.Options,
	templates []dataimport.ImportTemplate, observers ...func(dataimport.Progress)) WizardModel {
	ch := make(chan dataimport.Progress, 16)
	w.OnProgress(func(p dataimport.Progress) {
		for _, fn := range observers {
			fn(p)
		}
		select {
		case ch <- p:
		default:
		}
	})

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	return WizardModel{
		ctx:        ctx,
		wizard:     w,
		path:       path,
		opts:       opts,
		templates:  templates,
		progressCh: ch,
		busy:       true,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:        bar,
		help:       help.New(),
		keys:       defaultKeys(),
		styles:     DefaultStyles(),
	}
}

// Init starts loading the file.
func (m WizardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadFile(), m.waitForProgress())
}

func (m WizardModel) loadFile() tea.Cmd {
	w, path, opts := m.wizard, m.path, m.opts
	return func() tea.Msg {
		file, err := w.LoadFile(path, opts)
		return fileLoadedMsg{file: file, err: err}
	}
}

func (m WizardModel) validate(t *dataimport.ImportTemplate) tea.Cmd {
	w := m.wizard
	return func() tea.Msg {
		if err := w.SelectTemplate(t); err != nil {
			return validatedMsg{err: err}
		}
		res, err := w.Validate()
		return validatedMsg{result: res, err: err}
	}
}

func (m WizardModel) runImport() tea.Cmd {
	w, ctx := m.wizard, m.ctx
	return func() tea.Msg {
		res, err := w.Import(ctx)
		return importedMsg{result: res, err: err}
	}
}

func (m WizardModel) waitForProgress() tea.Cmd {
	ch := m.progressCh
	return func() tea.Msg {
		return progressMsg(<-ch)
	}
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(msg.Width-4, 60))
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		p := dataimport.Progress(msg)
		m.last = &p
		return m, m.waitForProgress()

	case fileLoadedMsg:
		m.busy = false
		m.err = msg.err
		return m, nil

	case validatedMsg:
		m.busy = false
		m.err = msg.err
		return m, nil

	case importedMsg:
		m.busy = false
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m WizardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Toggle) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	state := m.wizard.State()
	switch {
	case key.Matches(msg, m.keys.Up):
		if state == dataimport.StateTemplateSelect && m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if state == dataimport.StateTemplateSelect && m.cursor < len(m.templates) {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Enter):
		return m.advance(state)

	case key.Matches(msg, m.keys.Back):
		m.err = m.wizard.Back()

	case key.Matches(msg, m.keys.Reset):
		m.wizard.Reset()
		m.cursor = 0
		m.last = nil
		m.err = nil
		m.busy = true
		return m, m.loadFile()
	}
	return m, nil
}

func (m WizardModel) advance(state dataimport.State) (tea.Model, tea.Cmd) {
	m.err = nil
	switch state {
	case dataimport.StateUpload:
		m.busy = true
		return m, m.loadFile()

	case dataimport.StateTemplateSelect:
		m.busy = true
		return m, m.validate(m.selected())

	case dataimport.StateValidateResult:
		if !m.wizard.CanImport() {
			m.err = dataimport.ErrImportBlocked
			return m, nil
		}
		m.busy = true
		return m, m.runImport()

	case dataimport.StateImportResult:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m WizardModel) selected() *dataimport.ImportTemplate {
	if m.cursor == 0 || m.cursor > len(m.templates) {
		return nil
	}
	return &m.templates[m.cursor-1]
}

// Result returns the wizard's latest result and the last error shown.
// Call it on the model returned by tea.Program.Run.
func (m WizardModel) Result() (*dataimport.ImportResult, error) {
	return m.wizard.Snapshot().Result, m.err
}

// Completed reports whether the import finished.
func (m WizardModel) Completed() bool {
	return m.wizard.State() == dataimport.StateImportResult
}
