package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// statusOutput is the machine-readable status document.
type statusOutput struct {
	Cluster      string      `json:"cluster"`
	Provider     string      `json:"provider"`
	Architecture string      `json:"architecture"`
	DBVersion    string      `json:"db_version"`
	ClusterSize  int         `json:"cluster_size"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	InProgress   *lockOutput `json:"in_progress,omitempty"`
}

type lockOutput struct {
	Operation string    `json:"operation"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Status prints the deployment's persisted state. Reading the status also
// reconciles a stale lock left by a crashed operation.
func Status(dir string, jsonOutput bool) error {
	cfg, store, err := loadDeployment(dir)
	if err != nil {
		return err
	}

	status, err := store.Status()
	if err != nil {
		return err
	}
	st, err := store.Load()
	if err != nil {
		return err
	}
	lock, err := store.Locks().Current()
	if err != nil {
		return err
	}
	if lock != nil && !lock.Alive() {
		lock = nil
	}

	if jsonOutput {
		out := statusOutput{
			Cluster:      cfg.Name,
			Provider:     st.CloudProvider,
			Architecture: st.Architecture,
			DBVersion:    st.DBVersion,
			ClusterSize:  st.ClusterSize,
			Status:       string(status),
			CreatedAt:    st.CreatedAt,
		}
		if lock != nil {
			out.InProgress = &lockOutput{
				Operation: lock.Operation,
				PID:       lock.PID,
				Hostname:  lock.Hostname,
				StartedAt: lock.StartedAt,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Cluster:      %s\n", cfg.Name)
	fmt.Printf("Provider:     %s (%s)\n", st.CloudProvider, st.Architecture)
	fmt.Printf("DB version:   %s\n", st.DBVersion)
	fmt.Printf("Cluster size: %d\n", st.ClusterSize)
	fmt.Printf("Status:       %s\n", status)
	fmt.Printf("Created:      %s\n", st.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if lock != nil {
		fmt.Printf("In progress:  %s (pid %d on %s since %s)\n",
			lock.Operation, lock.PID, lock.Hostname, lock.StartedAt.Format("15:04:05"))
	}
	return nil
}
