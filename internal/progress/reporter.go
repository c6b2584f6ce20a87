package progress

import (
	"time"
)

// StepWeight assigns a fixed share of a stage's overall percent to one
// step. The weights of a stage sum to 100.
type StepWeight struct {
	Name   string
	Weight int
}

// Step plans for the lifecycle stages. Weights reflect where the time
// actually goes: terraform apply and the configuration playbook dominate a
// deploy.
var (
	DeploySteps = []StepWeight{
		{Name: "terraform-init", Weight: 5},
		{Name: "terraform-plan", Weight: 5},
		{Name: "terraform-apply", Weight: 50},
		{Name: "ansible-configure", Weight: 35},
		{Name: "finalize", Weight: 5},
	}
	DestroySteps = []StepWeight{
		{Name: "terraform-destroy", Weight: 90},
		{Name: "cleanup", Weight: 10},
	}
	PowerSteps = []StepWeight{
		{Name: "power-apply", Weight: 80},
		{Name: "wait-cluster", Weight: 20},
	}
)

// Reporter emits step events for one stage invocation and maintains the
// stage-wide overall percent. Both the per-step percent and the overall
// percent are monotonic: a late or duplicated source marker can never move
// an emitted value backwards.
type Reporter struct {
	stage string
	steps []StepWeight
	sink  Sink

	completed   map[string]bool
	lastPercent map[string]int
	lastOverall int
	now         func() time.Time
}

// NewReporter creates a Reporter for a stage with the given step plan.
func NewReporter(stage string, steps []StepWeight, sink Sink) *Reporter {
	return &Reporter{
		stage:       stage,
		steps:       steps,
		sink:        sink,
		completed:   make(map[string]bool),
		lastPercent: make(map[string]int),
		now:         time.Now,
	}
}

func (r *Reporter) weightOf(step string) int {
	for _, s := range r.steps {
		if s.Name == step {
			return s.Weight
		}
	}
	return 0
}

// overall computes the stage percent: full weight of every completed step
// plus the weighted share of the given step's local percent.
func (r *Reporter) overall(step string, local int) int {
	sum := 0
	for _, s := range r.steps {
		if r.completed[s.Name] {
			sum += s.Weight
		}
	}
	if !r.completed[step] {
		sum += r.weightOf(step) * local / 100
	}
	if sum < r.lastOverall {
		return r.lastOverall
	}
	if sum > 100 {
		sum = 100
	}
	r.lastOverall = sum
	return sum
}

// clampStep enforces per-step monotonicity and the [0,100] range.
func (r *Reporter) clampStep(step string, percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if last, ok := r.lastPercent[step]; ok && percent < last {
		percent = last
	}
	r.lastPercent[step] = percent
	return percent
}

func (r *Reporter) emit(step string, status EventStatus, message string, percent *int) {
	e := Event{
		Timestamp: r.now().UTC(),
		Stage:     r.stage,
		Step:      step,
		Status:    status,
		Message:   message,
	}
	if percent != nil {
		p := *percent
		e.Percent = &p
		o := r.overall(step, p)
		e.OverallPercent = &o
	}
	r.sink.Emit(e)
}

// StepStarted announces a step beginning at 0%.
func (r *Reporter) StepStarted(step, message string) {
	p := r.clampStep(step, 0)
	r.emit(step, EventStarted, message, &p)
}

// StepProgress reports a step-local percent.
func (r *Reporter) StepProgress(step string, percent int, message string) {
	p := r.clampStep(step, percent)
	r.emit(step, EventInProgress, message, &p)
}

// StepMessage reports step activity that carries no progress information.
func (r *Reporter) StepMessage(step, message string) {
	r.emit(step, EventInProgress, message, nil)
}

// StepCompleted marks a step finished, pushing its percent to 100.
func (r *Reporter) StepCompleted(step, message string) {
	p := r.clampStep(step, 100)
	r.completed[step] = true
	r.emit(step, EventCompleted, message, &p)
}

// StepFailed marks a step failed. The percent is frozen where it was.
func (r *Reporter) StepFailed(step, message string) {
	r.emit(step, EventFailed, message, nil)
}

// Raw forwards unrecognized subprocess output to the human-readable sink.
func (r *Reporter) Raw(line string) { r.sink.Raw(line) }
