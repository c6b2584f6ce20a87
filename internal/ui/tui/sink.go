package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dbforge/dbforge/internal/progress"
)

// Sink forwards progress events into a running Bubble Tea program. It
// implements progress.Sink, so it can be fanned out alongside the journal.
type Sink struct {
	program *tea.Program
}

// NewSink wraps a program.
func NewSink(p *tea.Program) *Sink { return &Sink{program: p} }

// Emit implements progress.Sink.
func (s *Sink) Emit(e progress.Event) {
	s.program.Send(EventMsg{Event: e})
}

// Raw implements progress.Sink.
func (s *Sink) Raw(line string) {
	s.program.Send(RawMsg{Line: line})
}
