package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Styles for the human-readable progress stream.
var (
	stepStyle    = lipgloss.NewStyle().Bold(true)
	percentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	rawStyle     = lipgloss.NewStyle().Faint(true)
)

// TextSink renders events as styled single-line text, typically on stderr.
// Unrecognized subprocess output is passed through dimmed.
type TextSink struct {
	mu      sync.Mutex
	w       io.Writer
	noColor bool
}

// NewTextSink creates a TextSink writing to w. With noColor set, output is
// plain text.
func NewTextSink(w io.Writer, noColor bool) *TextSink {
	return &TextSink{w: w, noColor: noColor}
}

func (s *TextSink) render(style lipgloss.Style, text string) string {
	if s.noColor {
		return text
	}
	return style.Render(text)
}

// Emit implements Sink.
func (s *TextSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := s.render(stepStyle, fmt.Sprintf("[%s/%s]", e.Stage, e.Step))
	var suffix string
	if e.OverallPercent != nil {
		suffix = s.render(percentStyle, fmt.Sprintf(" (%d%% overall)", *e.OverallPercent))
	} else if e.Percent != nil {
		suffix = s.render(percentStyle, fmt.Sprintf(" (%d%%)", *e.Percent))
	}

	switch e.Status {
	case EventCompleted:
		fmt.Fprintf(s.w, "%s %s %s%s\n", label, s.render(okStyle, "done"), e.Message, suffix)
	case EventFailed:
		fmt.Fprintf(s.w, "%s %s %s\n", label, s.render(failStyle, "failed"), e.Message)
	default:
		fmt.Fprintf(s.w, "%s %s%s\n", label, e.Message, suffix)
	}
}

// Raw implements Sink.
func (s *TextSink) Raw(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, s.render(rawStyle, line))
}
