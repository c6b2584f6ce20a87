package progress

import (
	"regexp"
	"strconv"
)

// Parser classifies one subprocess invocation's stdout line by line and
// feeds a Reporter. It understands the provisioning tool's plan summary and
// resource lifecycle lines, the configuration tool's task markers, and
// falls back to line-count estimation when neither is present. Unrecognized
// lines pass through to the human-readable sink unchanged.
//
// The grammar is an ordered (matcher, action) list; the first matching rule
// consumes the line.
type Parser struct {
	reporter *Reporter
	step     string

	// Provisioning-tool plan tracking.
	totalUnits int
	doneUnits  int
	havePlan   bool
	planBroken bool

	// Configuration-tool task tracking.
	haveTasks  bool
	taskOpen   bool
	openWeight int
	weightSeen int
	weightDone int

	// Line-count fallback.
	lines    int
	estimate Estimate
	lastPct  int
}

// Estimate carries the expected output size for an invocation without
// structured progress markers.
type Estimate struct {
	// TotalLines is the estimated stdout line count for this invocation.
	TotalLines int
	// MaxHistorical is the largest total ever observed for any operation,
	// used when TotalLines proves badly wrong mid-stream.
	MaxHistorical int
}

// NewParser creates a Parser feeding the given reporter under one step
// name. A zero Estimate disables line-count fallback.
func NewParser(reporter *Reporter, step string, estimate Estimate) *Parser {
	return &Parser{reporter: reporter, step: step, estimate: estimate}
}

type parseRule struct {
	name  string
	re    *regexp.Regexp
	apply func(p *Parser, match []string, line string)
}

// parseRules is evaluated in order; earlier rules win.
var parseRules = []parseRule{
	{
		name: "plan-summary",
		re:   regexp.MustCompile(`^Plan: (\S+) to add, (\S+) to change, (\S+) to destroy\.`),
		apply: func(p *Parser, m []string, line string) {
			add, err1 := strconv.Atoi(m[1])
			change, err2 := strconv.Atoi(m[2])
			destroy, err3 := strconv.Atoi(m[3])
			if err1 != nil || err2 != nil || err3 != nil {
				// A mangled plan line never aborts the operation; the
				// whole invocation degrades to pass-through.
				p.planBroken = true
				p.reporter.Raw(line)
				return
			}
			p.totalUnits = add + change + destroy
			p.doneUnits = 0
			p.havePlan = true
			p.reporter.StepMessage(p.step, line)
		},
	},
	{
		name: "resource-complete",
		re:   regexp.MustCompile(`^([^:]+): (?:Creation|Modification|Modifications|Destruction) complete`),
		apply: func(p *Parser, m []string, line string) {
			if !p.havePlan || p.totalUnits == 0 {
				p.reporter.StepMessage(p.step, line)
				return
			}
			p.doneUnits++
			pct := 100 * p.doneUnits / p.totalUnits
			if pct > 100 {
				pct = 100
			}
			p.reporter.StepProgress(p.step, pct, line)
		},
	},
	{
		name: "resource-lifecycle",
		re:   regexp.MustCompile(`^([^:]+): (?:Creating|Modifying|Destroying|Still creating|Still modifying|Still destroying)\.\.\.`),
		apply: func(p *Parser, m []string, line string) {
			p.reporter.StepMessage(p.step, line)
		},
	},
	{
		name: "task-header",
		re:   regexp.MustCompile(`^TASK \[(.+)\]`),
		apply: func(p *Parser, m []string, line string) {
			// A header with a still-open task means the previous task
			// produced no outcome line; count it as closed.
			if p.taskOpen {
				p.weightDone += p.openWeight
			}
			w := taskWeight(m[1])
			p.taskOpen = true
			p.openWeight = w
			p.weightSeen += w
			p.haveTasks = true
			p.emitTaskPercent(line)
		},
	},
	{
		name: "task-outcome",
		re:   regexp.MustCompile(`^(ok|changed|failed|skipping):`),
		apply: func(p *Parser, m []string, line string) {
			if !p.taskOpen {
				p.reporter.Raw(line)
				return
			}
			p.taskOpen = false
			p.weightDone += p.openWeight
			// Percent is emitted on the next task header, where the open
			// task dilutes the ratio; between tasks done/seen is always 1.
			p.reporter.StepMessage(p.step, line)
		},
	},
}

// emitTaskPercent reports the weighted task percent, capped at 95 so the
// step never reads done while the playbook is still running.
func (p *Parser) emitTaskPercent(line string) {
	if p.weightSeen == 0 {
		p.reporter.StepMessage(p.step, line)
		return
	}
	pct := 100 * p.weightDone / p.weightSeen
	if pct > 95 {
		pct = 95
	}
	p.reporter.StepProgress(p.step, pct, line)
}

// Line consumes one line of subprocess stdout.
func (p *Parser) Line(line string) {
	p.lines++

	if p.planBroken {
		p.reporter.Raw(line)
		return
	}

	for _, rule := range parseRules {
		if m := rule.re.FindStringSubmatch(line); m != nil {
			rule.apply(p, m, line)
			return
		}
	}

	p.reporter.Raw(line)
	p.lineCountProgress()
}

// lineCountProgress drives percent from output volume alone, for
// invocations without structured markers (provisioning init, refresh).
func (p *Parser) lineCountProgress() {
	if p.havePlan || p.haveTasks || p.estimate.TotalLines <= 0 {
		return
	}
	// The estimate badly undershot: grow it to the largest total ever
	// observed rather than sitting at the cap forever.
	if p.lines >= p.estimate.TotalLines && p.estimate.MaxHistorical > p.estimate.TotalLines {
		p.estimate.TotalLines = p.estimate.MaxHistorical
	}
	pct := 100 * p.lines / p.estimate.TotalLines
	if pct > 95 {
		pct = 95
	}
	if pct > p.lastPct {
		p.lastPct = pct
		p.reporter.StepProgress(p.step, pct, "")
	}
}

// Lines returns the number of stdout lines consumed so far.
func (p *Parser) Lines() int { return p.lines }
