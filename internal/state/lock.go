package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockFile is the JSON lock file inside a deployment directory.
const LockFile = "lock.json"

// Lock marks a deployment directory as owned by one running operation.
type Lock struct {
	Operation string    `json:"operation"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Alive reports whether the lock's owning process still exists.
//
// Liveness is only meaningful on the host that took the lock; a lock file
// written by another host is treated as alive and left alone.
func (l *Lock) Alive() bool {
	host, err := os.Hostname()
	if err == nil && l.Hostname != "" && l.Hostname != host {
		return true
	}
	return pidAlive(l.PID)
}

// pidAlive probes a process with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}

// ConflictError is returned when a live lock already guards the deployment.
type ConflictError struct {
	Lock *Lock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("deployment is locked by operation %q (pid %d on %s since %s)",
		e.Lock.Operation, e.Lock.PID, e.Lock.Hostname,
		e.Lock.StartedAt.Format(time.RFC3339))
}

// LockManager acquires and releases the lock file of one deployment
// directory. Acquisition never queues: a live conflicting lock is fatal,
// a stale one (dead owner) is cleared and acquisition proceeds.
type LockManager struct {
	dir string
}

// NewLockManager creates a LockManager for the given deployment directory.
func NewLockManager(dir string) *LockManager {
	return &LockManager{dir: dir}
}

func (m *LockManager) path() string { return filepath.Join(m.dir, LockFile) }

// Current returns the persisted lock, or nil when the deployment is
// unlocked.
func (m *LockManager) Current() (*Lock, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &lock, nil
}

// Acquire takes the lock for the named operation. It fails with a
// *ConflictError naming the existing operation and PID when a live lock is
// present, and silently clears a stale lock first.
func (m *LockManager) Acquire(operation string) (*Lock, error) {
	existing, err := m.Current()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Alive() {
			return nil, &ConflictError{Lock: existing}
		}
		if err := m.Release(); err != nil {
			return nil, err
		}
	}

	hostname, _ := os.Hostname()
	lock := &Lock{
		Operation: operation,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL closes the window between the conflict check and the write.
	f, err := os.OpenFile(m.path(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			if current, cerr := m.Current(); cerr == nil && current != nil {
				return nil, &ConflictError{Lock: current}
			}
			return nil, fmt.Errorf("deployment is locked")
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(m.path())
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(m.path())
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}
	return lock, nil
}

// Release removes the lock file. Releasing an unlocked deployment is a
// no-op.
func (m *LockManager) Release() error {
	if err := os.Remove(m.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
