package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		op      Operation
		from    Status
		allowed bool
	}{
		{OpDeploy, StatusInitialized, true},
		{OpDeploy, StatusDeployFailed, true},
		{OpDeploy, StatusDestroyed, true},
		{OpDeploy, StatusDeployed, false},
		{OpDeploy, StatusDeploying, false},

		{OpStart, StatusStopped, true},
		{OpStart, StatusStartFailed, true},
		{OpStart, StatusStopFailed, true},
		{OpStart, StatusDeployed, false},
		{OpStart, StatusInitialized, false},

		{OpStop, StatusDeployed, true},
		{OpStop, StatusStopFailed, true},
		{OpStop, StatusStopped, false},

		{OpDestroy, StatusDeployed, true},
		{OpDestroy, StatusDeployFailed, true},
		{OpDestroy, StatusStopped, true},
		{OpDestroy, StatusDestroyFailed, true},
		{OpDestroy, StatusDestroyed, false},
		{OpDestroy, StatusDeploying, false},
		{OpDestroy, StatusStopping, false},

		{OpHealth, StatusDeployed, true},
		{OpHealth, StatusStopped, false},
		{OpHealth, StatusDestroying, false},
	}

	for _, tt := range tests {
		err := CheckTransition(tt.op, tt.from)
		if tt.allowed {
			assert.NoError(t, err, "%s from %s", tt.op, tt.from)
		} else {
			assert.Error(t, err, "%s from %s", tt.op, tt.from)
		}
	}
}

// Every non-in-progress status except destroyed must have at least one
// outward transition; destroyed is left only via deploy.
func TestTransitionTable_NoDeadEnds(t *testing.T) {
	all := []Status{
		StatusInitialized, StatusDeployed, StatusDeployFailed,
		StatusStopped, StatusStopFailed, StatusStartFailed,
		StatusDestroyed, StatusDestroyFailed,
	}
	ops := []Operation{OpDeploy, OpStart, OpStop, OpDestroy, OpHealth}

	for _, status := range all {
		reachableOut := false
		for _, op := range ops {
			if CheckTransition(op, status) == nil {
				reachableOut = true
				break
			}
		}
		assert.True(t, reachableOut, "status %s has no outward transition", status)
	}
}

func TestOperationStatuses(t *testing.T) {
	require.Equal(t, StatusDeploying, OpDeploy.InProgressStatus())
	require.Equal(t, StatusDeployFailed, OpDeploy.FailureStatus())
	require.Equal(t, StatusDeployed, OpDeploy.SuccessStatus())

	require.Equal(t, StatusDeployed, OpStart.SuccessStatus())
	require.Equal(t, StatusStopped, OpStop.SuccessStatus())
	require.Equal(t, StatusDestroyed, OpDestroy.SuccessStatus())

	// Health runs without a status transition.
	assert.Equal(t, Status(""), OpHealth.InProgressStatus())
	assert.Equal(t, Status(""), OpHealth.FailureStatus())
}
