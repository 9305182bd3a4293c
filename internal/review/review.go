// Package review asks the user to confirm a destructive step in the terminal.
package review

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/ledgersync/internal/ledger"
)

const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorOverlay1 lipgloss.Color = "#7f849c"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	rowStyle    = lipgloss.NewStyle().PaddingLeft(2)
	keyStyle    = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(colorOverlay1)
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

type keyMap struct {
	Yes  key.Binding
	No   key.Binding
	Up   key.Binding
	Down key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Yes:  key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "delete")),
		No:   key.NewBinding(key.WithKeys("n", "N", "esc", "q", "ctrl+c"), key.WithHelp("n", "keep")),
		Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k", "up")),
		Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j", "down")),
	}
}

// Model is a yes/no prompt above a scrollable preview of the affected rows.
// Anything other than an explicit yes declines.
type Model struct {
	prompt   string
	rows     []ledger.Record
	offset   int
	height   int
	keys     keyMap
	done     bool
	accepted bool
}

// New builds a prompt previewing rows.
func New(prompt string, rows []ledger.Record) Model {
	return Model{prompt: prompt, rows: rows, height: 10, keys: defaultKeys()}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(1, msg.Height-8)
		m.offset = min(m.offset, m.maxOffset())
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.done, m.accepted = true, true
			return m, tea.Quit
		case key.Matches(msg, m.keys.No):
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.offset = max(0, m.offset-1)
		case key.Matches(msg, m.keys.Down):
			m.offset = min(m.maxOffset(), m.offset+1)
		}
	}
	return m, nil
}

func (m Model) maxOffset() int { return max(0, len(m.rows)-m.height) }

func (m Model) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	b.WriteString("\n\n")
	end := min(len(m.rows), m.offset+m.height)
	for _, r := range m.rows[m.offset:end] {
		b.WriteString(rowStyle.Render(fmt.Sprintf("%s  %s  %s  %s", r.DayKey(nil), r.Description, r.Amount.StringFixed(2), r.Ref())))
		b.WriteString("\n")
	}
	if len(m.rows) > m.height {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.rows))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	var help []string
	for _, k := range []key.Binding{m.keys.Yes, m.keys.No, m.keys.Up, m.keys.Down} {
		h := k.Help()
		help = append(help, keyStyle.Render(h.Key)+" "+helpStyle.Render(h.Desc))
	}
	b.WriteString(strings.Join(help, "  "))
	return cardStyle.Render(b.String())
}

// Accepted reports whether the user answered yes.
func (m Model) Accepted() bool { return m.done && m.accepted }

// Confirmer runs the prompt as a full-screen program.
type Confirmer struct {
	Rows   []ledger.Record
	Input  io.Reader
	Output io.Writer
}

// Confirm shows prompt and blocks until the user answers.
func (c Confirmer) Confirm(prompt string) (bool, error) {
	var opts []tea.ProgramOption
	if c.Input != nil {
		opts = append(opts, tea.WithInput(c.Input))
	}
	if c.Output != nil {
		opts = append(opts, tea.WithOutput(c.Output))
	}
	final, err := tea.NewProgram(New(prompt, c.Rows), opts...).Run()
	if err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	m, ok := final.(Model)
	return ok && m.Accepted(), nil
}
