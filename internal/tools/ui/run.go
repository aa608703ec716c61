package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	detailStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
)

type Action func(ctx context.Context) ([]string, error)

type actionMsg struct {
	details []string
	err     error
}

type model struct {
	ctx     context.Context
	title   string
	action  Action
	spinner spinner.Model
	done    bool
	details []string
	err     error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m model) run() tea.Msg {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	details, err := m.action(ctx)
	return actionMsg{details: details, err: err}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = context.Canceled
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	switch {
	case !m.done:
		fmt.Fprintf(&b, "%s Running %s...\n", m.spinner.View(), titleStyle.Render(m.title))
		return b.String()
	case m.err != nil:
		fmt.Fprintf(&b, "%s %s: %v\n", failStyle.Render("FAILED"), titleStyle.Render(m.title), m.err)
	default:
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("OK"), titleStyle.Render(m.title))
	}
	for _, d := range m.details {
		b.WriteString(detailStyle.Render(d))
		b.WriteString("\n")
	}
	return b.String()
}

// Run shows a spinner while action executes and prints its outcome.
func Run(ctx context.Context, title string, action Action) ([]string, error) {
	m := model{ctx: ctx, title: title, action: action, spinner: spinner.New(spinner.WithSpinner(spinner.Dot))}
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", title, err)
	}
	fm := final.(model)
	return fm.details, fm.err
}
