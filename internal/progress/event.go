// Package progress turns raw provisioning and configuration tool output
// into normalized, monotonic progress telemetry.
//
// The pipeline is: a streaming line parser classifies subprocess output
// into step events, a reporter weights steps into stage-wide percent, and
// sinks deliver events to the append-only JSONL journal (ground truth), a
// machine-readable stdout stream, a styled text stream, or a TUI.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalFile is the append-only progress log inside a deployment directory.
const JournalFile = "progress.jsonl"

// EventStatus is the lifecycle state of one step event.
type EventStatus string

// Step event statuses.
const (
	EventStarted    EventStatus = "started"
	EventInProgress EventStatus = "in_progress"
	EventCompleted  EventStatus = "completed"
	EventFailed     EventStatus = "failed"
)

// Event is one normalized telemetry record. Percent values are pointers so
// that events without progress information omit the fields entirely.
type Event struct {
	Timestamp      time.Time   `json:"timestamp"`
	Stage          string      `json:"stage"`
	Step           string      `json:"step"`
	Status         EventStatus `json:"status"`
	Message        string      `json:"message,omitempty"`
	Percent        *int        `json:"percent,omitempty"`
	OverallPercent *int        `json:"overall_percent,omitempty"`
}

// Sink consumes normalized events. Emit must not block for long; sinks are
// called inline from the subprocess read loop.
type Sink interface {
	Emit(Event)
	// Raw receives unrecognized subprocess output verbatim. Only
	// human-readable sinks render it; others drop it.
	Raw(line string)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Raw implements Sink.
func (m MultiSink) Raw(line string) {
	for _, s := range m {
		s.Raw(line)
	}
}

// Journal appends every event as one JSON object per line. The journal is
// the persisted ground truth for a deployment's progress history; events
// are written in emission order and never buffered across a command.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

// OpenJournal opens (creating if needed) the journal of a deployment
// directory for appending.
func OpenJournal(dir string) (*Journal, error) {
	f, err := os.OpenFile(filepath.Join(dir, JournalFile),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress journal: %w", err)
	}
	return &Journal{f: f}, nil
}

// Emit implements Sink.
func (j *Journal) Emit(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	// Single write per event keeps lines intact for concurrent readers.
	_, _ = j.f.Write(append(data, '\n'))
}

// Raw implements Sink. Raw output is not journaled.
func (j *Journal) Raw(string) {}

// Close closes the underlying file.
func (j *Journal) Close() error { return j.f.Close() }

// JSONSink writes each event as one JSON object per line, matching the
// journal format, for machine consumers on stdout.
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONSink creates a JSONSink writing to w.
func NewJSONSink(w io.Writer) *JSONSink { return &JSONSink{w: w} }

// Emit implements Sink.
func (s *JSONSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintln(s.w, string(data))
}

// Raw implements Sink. Machine consumers only get structured events.
func (s *JSONSink) Raw(string) {}
