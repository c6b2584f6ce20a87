package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dbforge/dbforge/internal/progress"
)

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderSteps(&b, m)
	renderRawTail(&b, m)
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("dbforge %s: %s", m.Stage, m.ClusterName)))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Failed: %v", m.Err))
	case m.Done:
		status += doneStyle.Render("Done")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame))
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = m.Width - 30
		if barWidth < 10 {
			barWidth = 10
		}
	}
	pct := m.Overall
	if m.Done {
		pct = 100
	}
	filled := barWidth * pct / 100
	if filled > barWidth {
		filled = barWidth
	}

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	eta := ""
	if m.EstimatedRemaining > 0 && !m.Done {
		eta = fmt.Sprintf(" ETA %s", formatDuration(m.EstimatedRemaining))
	}
	fmt.Fprintf(b, "  %s %d%%%s\n", bar, pct, eta)
}

func renderSteps(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Steps"))
	b.WriteString("\n")
	for _, s := range m.Steps {
		mark := pending
		line := s.Name
		switch s.Status {
		case progress.EventCompleted:
			mark = doneStyle.Render(checkMark)
		case progress.EventFailed:
			mark = failedStyle.Render(crossMark)
			if s.Message != "" {
				line += failedStyle.Render(" " + s.Message)
			}
		case progress.EventStarted, progress.EventInProgress:
			mark = activeStyle.Render(currentSpinner(m.SpinnerFrame))
			line += dimStyle.Render(fmt.Sprintf(" %d%%", s.Percent))
			if s.Message != "" {
				line += dimStyle.Render(" " + s.Message)
			}
		}
		fmt.Fprintf(b, "  %s %s\n", mark, line)
	}
}

func renderRawTail(b *strings.Builder, m Model) {
	if len(m.RawTail) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("  Output"))
	b.WriteString("\n")
	for _, line := range m.RawTail {
		fmt.Fprintf(b, "  %s\n", dimStyle.Render(line))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := time.Since(m.StartTime).Round(time.Second)
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed %s  q to quit", formatDuration(elapsed))))
	b.WriteString("\n")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
