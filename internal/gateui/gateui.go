// Package gateui renders the approval gate's pending mutation as a
// bubbletea program, letting a human review a SEARCH/REPLACE diff and
// approve or reject it with a keypress before it reaches disk.
package gateui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qasimio/Operon/internal/diff"
	"github.com/qasimio/Operon/internal/gate"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	addedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	controlStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")).
			Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is a bubbletea program presenting one gate.Request at a time and
// posting the user's decision back on Gate.
type Model struct {
	Gate     *gate.Gate
	viewport viewport.Model
	current  *gate.Request
	width    int
	height   int
	done     bool
}

// New constructs a Model bound to g. Call tea.NewProgram(New(g)).Run() from
// the CLI's interactive command.
func New(g *gate.Gate) Model {
	vp := viewport.New(100, 30)
	return Model{Gate: g, viewport: vp}
}

type requestMsg gate.Request

func (m Model) waitForRequest() tea.Cmd {
	return func() tea.Msg {
		req, ok := <-m.Gate.Requests()
		if !ok {
			return nil
		}
		return requestMsg(req)
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForRequest()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		return m, nil

	case requestMsg:
		req := gate.Request(msg)
		m.current = &req
		m.viewport.SetContent(m.renderDiff())
		return m, nil

	case tea.KeyMsg:
		if m.current == nil {
			if msg.String() == "q" || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "y":
			m.Gate.Respond(gate.Decision{RequestID: m.current.ID, Outcome: gate.Approved})
			m.current = nil
			return m, m.waitForRequest()
		case "n":
			m.Gate.Respond(gate.Decision{RequestID: m.current.ID, Outcome: gate.Rejected})
			m.current = nil
			return m, m.waitForRequest()
		case "q", "ctrl+c":
			m.Gate.Respond(gate.Decision{RequestID: m.current.ID, Outcome: gate.Rejected})
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) renderDiff() string {
	if m.current == nil {
		return mutedStyle.Render("Waiting for a mutation to review...")
	}
	p := m.current.Payload
	fd := diff.ComputeDiff(p.File, p.File, p.Search, p.Replace)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s: %s", m.current.Action, p.File)))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(p.Summary))
	sb.WriteString("\n\n")

	for _, hunk := range fd.Hunks {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)))
		sb.WriteString("\n")
		for _, line := range hunk.Lines {
			switch line.Type {
			case diff.LineAdded:
				sb.WriteString(addedStyle.Render("+ " + line.Content))
			case diff.LineRemoved:
				sb.WriteString(removedStyle.Render("- " + line.Content))
			default:
				sb.WriteString(mutedStyle.Render("  " + line.Content))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) View() string {
	controls := controlStyle.Render("[y] approve  [n] reject  [q] quit")
	return m.viewport.View() + "\n" + controls
}
