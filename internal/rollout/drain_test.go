package rollout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
	"github.com/imamik/hvroll/internal/rollout"
	hvtesting "github.com/imamik/hvroll/internal/testing"
)

func newDrainer(cp cluster.ControlPlane) *rollout.Drainer {
	return rollout.NewDrainer(rollout.Deps{ControlPlane: cp, Logger: logging.Discard()}, fastTiming())
}

func TestSetMaintenance_FromUp(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 2)
	cp := hvtesting.WithHosts(h)
	cp.Transitions = 3

	err := newDrainer(cp).SetMaintenance(context.Background(), h, true)

	require.NoError(t, err)
	assert.Equal(t, []string{"deactivate:h1"}, cp.Requests())
	assert.Equal(t, cluster.StateMaintenance, cp.State("h1"))
	// initial read + 3 intermediate polls + final poll
	assert.Equal(t, 5, cp.CallCount("get", "h1"))
}

func TestSetMaintenance_TwiceRequestsOnce(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 2)
	cp := hvtesting.WithHosts(h)
	d := newDrainer(cp)

	require.NoError(t, d.SetMaintenance(context.Background(), h, true))
	require.NoError(t, d.SetMaintenance(context.Background(), h, true))

	assert.Equal(t, 1, cp.CallCount("deactivate", "h1"))
}

func TestSetMaintenance_AlreadyInTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		state       cluster.HostState
		maintenance bool
	}{
		{"maintenance to maintenance", cluster.StateMaintenance, true},
		{"up to up", cluster.StateUp, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := hvtesting.NewHost("h1", 0, hvtesting.WithState(tt.state))
			cp := hvtesting.WithHosts(h)

			require.NoError(t, newDrainer(cp).SetMaintenance(context.Background(), h, tt.maintenance))
			assert.Empty(t, cp.Requests())
		})
	}
}

func TestSetMaintenance_PreparingWaitsWithoutRequest(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0, hvtesting.WithState(cluster.StatePreparingForMaintenance))
	cp := hvtesting.WithHosts(h)
	cp.Script("h1",
		cluster.StatePreparingForMaintenance,
		cluster.StatePreparingForMaintenance,
		cluster.StateMaintenance,
	)

	require.NoError(t, newDrainer(cp).SetMaintenance(context.Background(), h, true))
	assert.Empty(t, cp.Requests())
}

func TestSetMaintenance_RebootingSettlesToUp(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0, hvtesting.WithState(cluster.StateRebooting))
	cp := hvtesting.WithHosts(h)
	cp.Script("h1", cluster.StateRebooting, cluster.StateRebooting, cluster.StateUp)

	require.NoError(t, newDrainer(cp).SetMaintenance(context.Background(), h, true))
	assert.Equal(t, []string{"deactivate:h1"}, cp.Requests())
	assert.Equal(t, cluster.StateMaintenance, cp.State("h1"))
}

func TestSetMaintenance_RebootingSettlesToMaintenance(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0, hvtesting.WithState(cluster.StateRebooting))
	cp := hvtesting.WithHosts(h)
	cp.Script("h1", cluster.StateRebooting, cluster.StateMaintenance)

	require.NoError(t, newDrainer(cp).SetMaintenance(context.Background(), h, true))
	assert.Empty(t, cp.Requests())
}

func TestSetMaintenance_InvalidState(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0, hvtesting.WithRawState("non_responsive"))
	cp := hvtesting.WithHosts(h)

	err := newDrainer(cp).SetMaintenance(context.Background(), h, true)

	require.ErrorIs(t, err, rollout.ErrInvalidState)
	var se *rollout.StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "non_responsive", se.Raw)
	assert.Contains(t, err.Error(), "non_responsive")
	assert.Empty(t, cp.Requests())
}

func TestSetMaintenance_Timeout(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	cp := hvtesting.WithHosts(h)
	cp.Stuck["h1"] = true

	err := newDrainer(cp).SetMaintenance(context.Background(), h, true)

	require.ErrorIs(t, err, rollout.ErrDrainTimeout)
	var se *rollout.StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, cluster.StateUp, se.State)
	assert.Equal(t, 1, cp.CallCount("deactivate", "h1"))
	assert.False(t, rollout.IsFatal(err))
}

func TestSetMaintenance_Activate(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0, hvtesting.WithState(cluster.StateMaintenance))
	cp := hvtesting.WithHosts(h)
	cp.Transitions = 1

	require.NoError(t, newDrainer(cp).SetMaintenance(context.Background(), h, false))
	assert.Equal(t, []string{"activate:h1"}, cp.Requests())
	assert.Equal(t, cluster.StateUp, cp.State("h1"))
}

func TestSetMaintenance_ActivateWhilePreparing(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0, hvtesting.WithState(cluster.StatePreparingForMaintenance))
	cp := hvtesting.WithHosts(h)
	cp.Script("h1", cluster.StatePreparingForMaintenance, cluster.StateMaintenance)

	require.NoError(t, newDrainer(cp).SetMaintenance(context.Background(), h, false))
	assert.Equal(t, []string{"activate:h1"}, cp.Requests())
}

func TestSetMaintenance_RequestError(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	cp := hvtesting.WithHosts(h)
	cp.Errors["deactivate:h1"] = errors.New("operation failed: host has pinned VMs")

	err := newDrainer(cp).SetMaintenance(context.Background(), h, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinned VMs")
	assert.False(t, rollout.IsFatal(err))
}

func TestSetMaintenance_ControlPlaneUnreachable(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	cp := hvtesting.WithHosts(h)
	cp.Errors["get:h1"] = cluster.ErrUnreachable

	err := newDrainer(cp).SetMaintenance(context.Background(), h, true)

	require.ErrorIs(t, err, cluster.ErrUnreachable)
	assert.True(t, rollout.IsFatal(err))
}

func TestSetMaintenance_Cancelled(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	cp := hvtesting.WithHosts(h)
	cp.Stuck["h1"] = true
	d := rollout.NewDrainer(rollout.Deps{ControlPlane: cp, Logger: logging.Discard()},
		rollout.Timing{PollInterval: time.Millisecond, WaitTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := d.SetMaintenance(ctx, h, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}
