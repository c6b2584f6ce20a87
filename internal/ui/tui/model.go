package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dbforge/dbforge/internal/progress"
)

// rawTailLines is how many unrecognized output lines stay visible.
const rawTailLines = 5

// StepView is one stage step for display.
type StepView struct {
	Name    string
	Status  progress.EventStatus
	Percent int
	Message string
}

// Model is the Bubble Tea model for a lifecycle operation.
type Model struct {
	ClusterName string
	Stage       string

	Steps   []StepView
	Overall int
	RawTail []string

	// ETA extrapolated from elapsed time and overall percent.
	EstimatedRemaining time.Duration
	StartTime          time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool
}

// NewModel creates a model for one stage with its planned steps.
func NewModel(clusterName, stage string, steps []progress.StepWeight) Model {
	m := Model{
		ClusterName: clusterName,
		Stage:       stage,
		StartTime:   time.Now(),
	}
	for _, s := range steps {
		m.Steps = append(m.Steps, StepView{Name: s.Name})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m.applyEvent(msg.Event)

	case RawMsg:
		m.RawTail = append(m.RawTail, msg.Line)
		if len(m.RawTail) > rawTailLines {
			m.RawTail = m.RawTail[len(m.RawTail)-rawTailLines:]
		}

	case TickMsg:
		m.SpinnerFrame++
		m.updateETA()
		return m, tickCmd()

	case DoneMsg:
		m.Err = msg.Err
		m.Done = msg.Err == nil
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) applyEvent(e progress.Event) {
	idx := -1
	for i, s := range m.Steps {
		if s.Name == e.Step {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.Steps = append(m.Steps, StepView{Name: e.Step})
		idx = len(m.Steps) - 1
	}

	step := &m.Steps[idx]
	step.Status = e.Status
	if e.Message != "" {
		step.Message = e.Message
	}
	if e.Percent != nil && *e.Percent > step.Percent {
		step.Percent = *e.Percent
	}
	if e.OverallPercent != nil && *e.OverallPercent > m.Overall {
		m.Overall = *e.OverallPercent
	}
}

func (m *Model) updateETA() {
	if m.Overall <= 0 || m.Overall >= 100 {
		m.EstimatedRemaining = 0
		return
	}
	elapsed := time.Since(m.StartTime)
	total := time.Duration(float64(elapsed) * 100 / float64(m.Overall))
	m.EstimatedRemaining = (total - elapsed).Round(time.Second)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
