// Package tui provides a Bubble Tea terminal UI for lifecycle operations.
package tui

import "github.com/dbforge/dbforge/internal/progress"

// EventMsg carries one normalized progress event into the model.
type EventMsg struct {
	Event progress.Event
}

// RawMsg carries an unrecognized subprocess output line.
type RawMsg struct {
	Line string
}

// TickMsg is sent periodically to refresh the spinner and ETA.
type TickMsg struct{}

// DoneMsg signals that the operation finished; a non-nil Err means it
// failed.
type DoneMsg struct {
	Err error
}
