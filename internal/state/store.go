// Package state persists per-deployment lifecycle state and provides the
// file-based locking that serializes mutating operations on one deployment
// directory.
//
// The state file is the single source of truth for a deployment's lifecycle
// status. Only the current lock holder may write it; anyone may read it.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateFile is the JSON state file inside a deployment directory.
const StateFile = "state.json"

// Status is the lifecycle status of a deployment.
type Status string

// Lifecycle statuses. The *_failed values are terminal for their operation
// and act as retry entry points for the same operation.
const (
	StatusInitialized   Status = "initialized"
	StatusDeploying     Status = "deploying"
	StatusDeployed      Status = "deployed"
	StatusDeployFailed  Status = "deploy_failed"
	StatusStarting      Status = "starting"
	StatusStartFailed   Status = "start_failed"
	StatusStopping      Status = "stopping"
	StatusStopped       Status = "stopped"
	StatusStopFailed    Status = "stop_failed"
	StatusDestroying    Status = "destroying"
	StatusDestroyed     Status = "destroyed"
	StatusDestroyFailed Status = "destroy_failed"
)

// InProgress reports whether the status marks a running operation.
func (s Status) InProgress() bool {
	switch s {
	case StatusDeploying, StatusStarting, StatusStopping, StatusDestroying:
		return true
	}
	return false
}

// failedCounterpart maps an in-progress status to the failure status an
// interrupted operation of that kind resolves to.
func (s Status) failedCounterpart() Status {
	switch s {
	case StatusDeploying:
		return StatusDeployFailed
	case StatusStarting:
		return StatusStartFailed
	case StatusStopping:
		return StatusStopFailed
	case StatusDestroying:
		return StatusDestroyFailed
	}
	return s
}

// State is the persisted deployment record.
type State struct {
	Status        Status    `json:"status"`
	DBVersion     string    `json:"db_version"`
	Architecture  string    `json:"architecture"`
	CloudProvider string    `json:"cloud_provider"`
	ClusterSize   int       `json:"cluster_size"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store reads and writes the state file of one deployment directory.
type Store struct {
	dir   string
	locks *LockManager
}

// NewStore creates a Store for the given deployment directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir, locks: NewLockManager(dir)}
}

// Dir returns the deployment directory.
func (s *Store) Dir() string { return s.dir }

// Locks returns the lock manager for the same deployment directory.
func (s *Store) Locks() *LockManager { return s.locks }

func (s *Store) path() string { return filepath.Join(s.dir, StateFile) }

// Exists reports whether the deployment has a state file.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path())
	return err == nil
}

// Init creates the state file with status initialized. It fails if the
// deployment already has one.
func (s *Store) Init(provider, dbVersion, arch string, clusterSize int) (*State, error) {
	if s.Exists() {
		return nil, fmt.Errorf("deployment already initialized in %s", s.dir)
	}
	st := &State{
		Status:        StatusInitialized,
		DBVersion:     dbVersion,
		Architecture:  arch,
		CloudProvider: provider,
		ClusterSize:   clusterSize,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.write(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Load reads the full state record.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no deployment found in %s (run init first)", s.dir)
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &st, nil
}

// SetStatus overwrites only the status field of the state file.
func (s *Store) SetStatus(status Status) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	st.Status = status
	return s.write(st)
}

// Status returns the current status, reconciling leftovers of a crashed
// operation: a lock whose owning process is dead is removed, and an
// in-progress status it left behind is resolved to the matching failure
// status before being returned. An in-progress status guarded by a live
// lock is returned as-is.
func (s *Store) Status() (Status, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}

	lock, err := s.locks.Current()
	if err != nil {
		return "", err
	}

	if st.Status.InProgress() {
		if lock != nil && lock.Alive() {
			return st.Status, nil
		}
		// Crashed mid-operation: demote to the failure status so callers
		// never see a stale in-progress value.
		failed := st.Status.failedCounterpart()
		if err := s.SetStatus(failed); err != nil {
			return "", err
		}
		st.Status = failed
	}

	if lock != nil && !lock.Alive() {
		if err := s.locks.Release(); err != nil {
			return "", err
		}
	}

	return st.Status, nil
}

// write persists the state atomically (temp file + rename) so that readers
// never observe a torn record.
func (s *Store) write(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return atomicWrite(s.path(), append(data, '\n'), 0o600)
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
