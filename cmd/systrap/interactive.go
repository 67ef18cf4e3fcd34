package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/systrap/dispatch"
	"github.com/wippyai/systrap/opcode"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// pageSize is how many opcodes the picker shows at once.
const pageSize = 16

type consoleModel struct {
	err      error
	d        *dispatch.Dispatcher
	result   string
	failed   bool
	ops      []opcode.Opcode
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

func newConsoleModel(d *dispatch.Dispatcher) *consoleModel {
	return &consoleModel{
		d:     d,
		ops:   opcode.All(),
		state: stateSelectOp,
	}
}

type trapResultMsg struct {
	err    error
	result string
	failed bool
}

func (m *consoleModel) Init() tea.Cmd {
	return nil
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(m.ops)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.issueTrap
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.issueTrap

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case trapResultMsg:
		m.result = msg.result
		m.failed = msg.failed
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *consoleModel) reset() {
	m.state = stateSelectOp
	m.result = ""
	m.failed = false
	m.err = nil
	m.inputs = nil
}

func (m *consoleModel) prepareInputs() {
	sig, _ := m.ops[m.selected].Signature()
	m.inputs = make([]textinput.Model, len(sig.Args))
	for i, k := range sig.Args {
		ti := textinput.New()
		ti.Placeholder = k.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *consoleModel) issueTrap() tea.Msg {
	texts := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		texts[i] = input.Value()
	}
	o, err := issue(context.Background(), m.d, m.ops[m.selected], texts)
	if err != nil {
		return trapResultMsg{err: err}
	}
	return trapResultMsg{
		result: formatOutcome(m.d, o),
		failed: !o.OK(),
	}
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("systrap console"))
	b.WriteString(fmt.Sprintf(" %d opcodes\n\n", len(m.ops)))

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select a trap to issue:\n\n")
		start := 0
		if m.selected >= pageSize {
			start = m.selected - pageSize + 1
		}
		end := min(start+pageSize, len(m.ops))
		for i := start; i < end; i++ {
			line := m.formatOp(m.ops[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter issue • q quit"))

	case stateInputArgs:
		op := m.ops[m.selected]
		sig, _ := op.Signature()
		b.WriteString(fmt.Sprintf("Issuing %s\n\n", opStyle.Render(op.String())))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(sig.Args[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter issue • esc back"))

	case stateShowResult:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Outcome of %s:\n\n", opStyle.Render(op.String())))
		switch {
		case m.err != nil:
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		case m.failed:
			b.WriteString(errorStyle.Render(m.result))
		default:
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *consoleModel) formatOp(op opcode.Opcode) string {
	sig, _ := op.Signature()
	return fmt.Sprintf("%3d ", int(op)) + opStyle.Render(sig.Name) +
		typeStyle.Render(formatArgs(sig)) + " -> " + typeStyle.Render(formatShape(sig))
}

func runInteractive(d *dispatch.Dispatcher) error {
	p := tea.NewProgram(newConsoleModel(d), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
