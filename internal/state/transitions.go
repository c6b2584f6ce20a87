package state

import (
	"fmt"
	"strings"
)

// Operation names the lifecycle operations that mutate a deployment.
type Operation string

// Lifecycle operations.
const (
	OpDeploy  Operation = "deploy"
	OpStart   Operation = "start"
	OpStop    Operation = "stop"
	OpDestroy Operation = "destroy"
	OpHealth  Operation = "health"
)

// transitions is the single table of legal (status -> operation) pairs.
// Commands consult it instead of carrying their own precondition checks.
//
// Statuses with no outward transition here are either in-progress (owned by
// the running operation) or destroyed, which only deploy leaves again.
var transitions = map[Operation][]Status{
	// deploy provisions from scratch or retries a failed deploy; a
	// destroyed deployment may be deployed again into the same directory.
	OpDeploy: {StatusInitialized, StatusDeployFailed, StatusDestroyed},

	// start brings a stopped cluster back; retryable after its own failure
	// and after a failed stop (nodes may be half down).
	OpStart: {StatusStopped, StatusStartFailed, StatusStopFailed},

	// stop powers a running cluster down; retryable after its own failure.
	OpStop: {StatusDeployed, StatusStopFailed},

	// destroy accepts every settled status with infrastructure that may
	// exist. Never while another operation is in progress.
	OpDestroy: {
		StatusInitialized, StatusDeployed, StatusDeployFailed,
		StatusStopped, StatusStopFailed, StatusStartFailed,
		StatusDestroyFailed,
	},

	// health needs provisioned infrastructure to inspect.
	OpHealth: {StatusDeployed, StatusStartFailed, StatusStopFailed},
}

// inProgressStatus maps an operation to the status it runs under.
var inProgressStatus = map[Operation]Status{
	OpDeploy:  StatusDeploying,
	OpStart:   StatusStarting,
	OpStop:    StatusStopping,
	OpDestroy: StatusDestroying,
}

// failureStatus maps an operation to its terminal failure status.
var failureStatus = map[Operation]Status{
	OpDeploy:  StatusDeployFailed,
	OpStart:   StatusStartFailed,
	OpStop:    StatusStopFailed,
	OpDestroy: StatusDestroyFailed,
}

// successStatus maps an operation to its terminal success status.
var successStatus = map[Operation]Status{
	OpDeploy:  StatusDeployed,
	OpStart:   StatusDeployed,
	OpStop:    StatusStopped,
	OpDestroy: StatusDestroyed,
}

// InProgressStatus returns the status an operation runs under. Health runs
// without a status transition and returns the empty status.
func (op Operation) InProgressStatus() Status { return inProgressStatus[op] }

// FailureStatus returns the terminal failure status for the operation, or
// the empty status for operations that do not transition (health).
func (op Operation) FailureStatus() Status { return failureStatus[op] }

// SuccessStatus returns the terminal success status for the operation.
func (op Operation) SuccessStatus() Status { return successStatus[op] }

// PreconditionError reports a lifecycle command rejected by the transition
// table. It fails before any lock is taken.
type PreconditionError struct {
	Op      Operation
	Current Status
}

func (e *PreconditionError) Error() string {
	allowed := make([]string, 0, len(transitions[e.Op]))
	for _, s := range transitions[e.Op] {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("cannot %s a deployment with status %q (requires one of: %s)",
		e.Op, e.Current, strings.Join(allowed, ", "))
}

// CheckTransition validates that the operation may run from the current
// status.
func CheckTransition(op Operation, current Status) error {
	for _, s := range transitions[op] {
		if s == current {
			return nil
		}
	}
	return &PreconditionError{Op: op, Current: current}
}
