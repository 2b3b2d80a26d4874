// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards updates without blocking the stream
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Control carries user actions out of the TUI
type Control struct {
	Changes chan VolumeChangeMsg
	Quit    chan struct{}
}

// NewControl creates the control channels
func NewControl() *Control {
	return &Control{
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan struct{}, 1),
	}
}

// TUI runs the status display
type TUI struct {
	program *tea.Program
	updates chan tea.Msg
	done    chan struct{}
	once    sync.Once
}

// New creates the TUI. Options are passed to bubbletea, so tests can swap
// the terminal for buffers.
func New(info Info, ctrl *Control, opts ...tea.ProgramOption) *TUI {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	t := &TUI{
		program: tea.NewProgram(NewModel(info, ctrl), opts...),
		updates: make(chan tea.Msg, 32),
		done:    make(chan struct{}),
	}
	go t.forward()
	return t
}

func (t *TUI) forward() {
	for {
		select {
		case msg := <-t.updates:
			t.program.Send(msg)
		case <-t.done:
			return
		}
	}
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Send queues a message, dropping it if the TUI is behind
func (t *TUI) Send(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// Stop quits the program
func (t *TUI) Stop() {
	t.once.Do(func() {
		close(t.done)
		t.program.Quit()
	})
}
