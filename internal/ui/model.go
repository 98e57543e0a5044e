// ABOUTME: Bubbletea model for the stream monitor
// ABOUTME: Renders driver state, tone and transfer counters
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/stream"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusMsg updates the monitor
type StatusMsg struct {
	State     stream.State
	Name      string
	Waveform  string
	Frequency float64
	Format    string
	Output    string
	Listeners int
	Stats     stream.Stats

	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

type tickMsg time.Time

// Model represents the monitor state
type Model struct {
	status    StatusMsg
	startTime time.Time
	quitting  bool
	showDebug bool
	quitChan  chan struct{}

	width  int
	height int
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
)

// NewModel creates a monitor model; quit receives one value when the user quits
func NewModel(quit chan struct{}) Model {
	return Model{
		status:    StatusMsg{State: stream.Idle},
		startTime: time.Now(),
		quitChan:  quit,
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus replaces the displayed status, keeping identity fields when omitted
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Name == "" {
		msg.Name = m.status.Name
	}
	if msg.Waveform == "" {
		msg.Waveform = m.status.Waveform
		msg.Frequency = m.status.Frequency
	}
	if msg.Format == "" {
		msg.Format = m.status.Format
	}
	if msg.Output == "" {
		msg.Output = m.status.Output
	}
	m.status = msg
}

// View renders the monitor
func (m Model) View() string {
	if m.quitting {
		return "Stopping stream...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Tone Stream"))
	b.WriteString("\n\n")

	field(&b, "Name: ", m.status.Name)
	field(&b, "State: ", stateStyle(m.status.State).Render(m.status.State.String()))
	field(&b, "Tone: ", fmt.Sprintf("%s %.1f Hz", m.status.Waveform, m.status.Frequency))
	field(&b, "Format: ", m.status.Format)
	field(&b, "Output: ", m.status.Output)
	if m.status.Output == "websocket" {
		field(&b, "Listeners: ", fmt.Sprintf("%d", m.status.Listeners))
	}
	field(&b, "Uptime: ", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	s := m.status.Stats
	b.WriteString(sectionStyle.Render("Transfer"))
	b.WriteString("\n\n")
	field(&b, "  Buffers: ", fmt.Sprintf("%d (%d frames)", s.Buffers, s.Frames))
	field(&b, "  Bytes: ", formatBytes(s.Bytes))
	field(&b, "  Writes: ", fmt.Sprintf("%d (%d partial)", s.WriteCalls, s.PartialWrites))
	field(&b, "  Timeouts: ", fmt.Sprintf("%d (max %d in a row)", s.Timeouts, s.MaxConsecutiveTimeouts))
	field(&b, "  Underruns: ", fmt.Sprintf("%d of %d descriptors", s.Underruns, s.Completions))
	field(&b, "  Faults: ", fmt.Sprintf("%d", s.Faults))

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Debug"))
		b.WriteString("\n\n")
		field(&b, "  Goroutines: ", fmt.Sprintf("%d", m.status.Goroutines))
		field(&b, "  Heap: ", fmt.Sprintf("%s / %s", formatBytes(m.status.MemAlloc), formatBytes(m.status.MemSys)))
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("d: debug  q: stop and quit"))

	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func stateStyle(s stream.State) lipgloss.Style {
	switch s {
	case stream.Streaming:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	case stream.Faulted:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	default:
		return valueStyle
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
