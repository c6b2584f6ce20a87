// Package runner executes external provisioning and configuration tools,
// streaming their stdout line by line as it is produced.
//
// Exactly one subprocess runs at a time per lifecycle command. Context
// cancellation forwards SIGTERM to the child and escalates to SIGKILL
// after a grace period, so an aborted operation never leaves children
// behind.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a cancelled child may keep running after
// SIGTERM before it is killed.
const DefaultGracePeriod = 10 * time.Second

// maxLineSize bounds a single stdout line; provisioning tools occasionally
// dump large JSON blobs on one line.
const maxLineSize = 1024 * 1024

// Command describes one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the parent environment

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration
}

// Result summarizes a finished subprocess.
type Result struct {
	ExitCode int
	Lines    int
	Duration time.Duration
	Stderr   string
}

// ExitError reports a subprocess that ran to completion with a non-zero
// exit code. The stderr tail is included for diagnostics.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Run starts the command and invokes onLine for every stdout line as it
// arrives. It blocks until the subprocess exits. The returned Result is
// non-nil whenever the process actually ran, including on failure.
func Run(ctx context.Context, cmd Command, onLine func(string)) (*Result, error) {
	grace := cmd.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	// #nosec G204 -- the command names are fixed tool binaries.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	// Graceful teardown: SIGTERM on cancellation, SIGKILL after the grace
	// period.
	c.Cancel = func() error {
		return c.Process.Signal(syscall.SIGTERM)
	}
	c.WaitDelay = grace

	var stderr bytes.Buffer
	c.Stderr = &stderr

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	lines := 0
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines++
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	waitErr := c.Wait()
	result := &Result{
		ExitCode: c.ProcessState.ExitCode(),
		Lines:    lines,
		Duration: time.Since(start),
		Stderr:   stderrTail(stderr.String()),
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%s aborted: %w", cmd.Name, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return result, &ExitError{Command: cmd.Name, ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
		return result, fmt.Errorf("%s failed: %w", cmd.Name, waitErr)
	}
	if scanErr != nil {
		return result, fmt.Errorf("failed to read %s output: %w", cmd.Name, scanErr)
	}
	return result, nil
}

// stderrTail keeps the last few lines of stderr for error messages.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
