package progress

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Sample is one historical observation of a finished operation, used only
// for estimating future operation size. Samples are immutable once written.
type Sample struct {
	Provider         string  `json:"provider"`
	Operation        string  `json:"operation"`
	NodeCount        int     `json:"node_count"`
	TotalOutputLines int     `json:"total_output_lines"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// Repository reads and appends metric samples stored as JSONL. History is
// shared across deployments of one user.
type Repository struct {
	path    string
	samples []Sample
}

// DefaultMetricsPath returns the per-user metrics file.
func DefaultMetricsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".dbforge", "metrics.jsonl"), nil
}

// OpenRepository loads the sample history from path. A missing file yields
// an empty repository.
func OpenRepository(path string) (*Repository, error) {
	repo := &Repository{path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return repo, nil
		}
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var s Sample
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			// One corrupt line never poisons the whole history.
			continue
		}
		repo.samples = append(repo.samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metrics file: %w", err)
	}
	return repo, nil
}

// Samples returns the history for one (provider, operation) pair.
func (r *Repository) Samples(provider, operation string) []Sample {
	var out []Sample
	for _, s := range r.samples {
		if s.Provider == provider && s.Operation == operation {
			out = append(out, s)
		}
	}
	return out
}

// MaxLines returns the largest output line count across all history, or 0
// with no history.
func (r *Repository) MaxLines() int {
	max := 0
	for _, s := range r.samples {
		if s.TotalOutputLines > max {
			max = s.TotalOutputLines
		}
	}
	return max
}

// Append records a new sample at the end of the history file.
func (r *Repository) Append(s Sample) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	r.samples = append(r.samples, s)
	return nil
}
