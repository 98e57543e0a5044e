// ABOUTME: TUI initialization and control
// ABOUTME: Runs the bubbletea monitor and forwards status updates to it
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Monitor runs the stream monitor TUI
type Monitor struct {
	program *tea.Program
	updates chan StatusMsg

	// Quit receives one value when the user asks to stop
	Quit chan struct{}
}

// NewMonitor creates a monitor; call Start to show it
func NewMonitor() *Monitor {
	m := &Monitor{
		updates: make(chan StatusMsg, 10),
		Quit:    make(chan struct{}, 1),
	}
	m.program = tea.NewProgram(NewModel(m.Quit), tea.WithAltScreen())
	return m
}

// Start runs the TUI until it quits
func (m *Monitor) Start() error {
	go func() {
		for status := range m.updates {
			m.program.Send(status)
		}
	}()

	_, err := m.program.Run()
	return err
}

// Update sends a status update without blocking
func (m *Monitor) Update(status StatusMsg) {
	select {
	case m.updates <- status:
	default:
	}
}

// Stop closes the TUI
func (m *Monitor) Stop() {
	m.program.Quit()
}
