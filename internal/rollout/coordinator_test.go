package rollout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/rollout"
	hvtesting "github.com/imamik/hvroll/internal/testing"
)

func threeHosts() []cluster.Host {
	return []cluster.Host{
		hvtesting.NewHost("H1", 5),
		hvtesting.NewHost("H2", 1),
		hvtesting.NewHost("H3", 3),
	}
}

func hostNames(hosts []cluster.Host) []string {
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name
	}
	return names
}

func outcomeHosts(r *rollout.Report) []string {
	names := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		names[i] = o.Host
	}
	return names
}

func TestPlan_AscendingStable(t *testing.T) {
	t.Parallel()
	hosts := []cluster.Host{
		hvtesting.NewHost("a", 4),
		hvtesting.NewHost("b", 0),
		hvtesting.NewHost("c", 4),
		hvtesting.NewHost("d", 2),
		hvtesting.NewHost("e", 0),
	}

	plan := rollout.Plan(hosts)

	assert.Equal(t, []string{"b", "e", "d", "a", "c"}, hostNames(plan))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, hostNames(hosts), "input untouched")
}

// Scenario A: every phase succeeds.
func TestRun_AllUpdated(t *testing.T) {
	t.Parallel()
	hosts := threeHosts()
	f := newFixture(hvtesting.WithHosts(hosts...))
	for _, h := range hosts {
		withUpdates(f.dialer, h.Address)
	}

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.Equal(t, []string{"H2", "H3", "H1"}, outcomeHosts(report))
	assert.Equal(t, []string{
		"deactivate:H2", "activate:H2",
		"deactivate:H3", "activate:H3",
		"deactivate:H1", "activate:H1",
	}, f.cp.Requests())
	assert.Equal(t, 3, report.Count(rollout.Updated))
	assert.Zero(t, report.Failures)
	assert.False(t, report.Aborted)
	for _, h := range hosts {
		assert.Equal(t, cluster.StateUp, f.cp.State(h.Name))
	}
	assert.False(t, report.Finished.Before(report.Started))
}

// Scenario B: the check step of H2 fails.
func TestRun_CheckFailureReactivatesAndContinues(t *testing.T) {
	t.Parallel()
	hosts := threeHosts()
	f := newFixture(hvtesting.WithHosts(hosts...))
	for _, h := range hosts {
		withUpdates(f.dialer, h.Address)
	}
	f.dialer.On(hosts[1].Address, checkCmd, hvtesting.CommandResult{ExitCode: 1, Stderr: "repo unavailable"})

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.Equal(t, []string{"H2", "H3", "H1"}, outcomeHosts(report))
	h2, _ := report.Outcome("H2")
	assert.Equal(t, rollout.Failed, h2.Kind)
	assert.Contains(t, h2.Reason, "repo unavailable")
	assert.False(t, h2.NeedsAttention)
	assert.Equal(t, 1, f.cp.CallCount("activate", "H2"))
	assert.Equal(t, cluster.StateUp, f.cp.State("H2"))
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 2, report.Count(rollout.Updated))
}

// Scenario C: H3 reports an unrecognized state when the drain starts.
func TestRun_InvalidStateNeverDeactivated(t *testing.T) {
	t.Parallel()
	hosts := threeHosts()
	cp := hvtesting.WithHosts(hosts...)
	cp.SetState("H3", cluster.StateOther)
	f := newFixture(cp)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	h3, _ := report.Outcome("H3")
	assert.Equal(t, rollout.Failed, h3.Kind)
	assert.Contains(t, h3.Reason, rollout.ErrInvalidState.Error())
	assert.Zero(t, cp.CallCount("deactivate", "H3"))
	assert.NotContains(t, f.dialer.Dialed(), hosts[2].Address)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 2, report.Count(rollout.NoUpdatesAvailable))
}

func TestRun_VerifyFailureLeavesMaintenance(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	f := newFixture(hvtesting.WithHosts(h))
	withUpdates(f.dialer, h.Address)
	f.prober = &hvtesting.MockProber{}
	f.prober.On("Probe", mock.Anything, h.Address).Return(false)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), []cluster.Host{h})

	require.NoError(t, err)
	out, _ := report.Outcome("h1")
	assert.Equal(t, rollout.Failed, out.Kind)
	assert.True(t, out.NeedsAttention)
	assert.Equal(t, "maintenance", out.LastState)
	assert.Contains(t, out.Reason, rollout.ErrVerifyTimeout.Error())
	assert.Zero(t, f.cp.CallCount("activate", "h1"))
	assert.Equal(t, cluster.StateMaintenance, f.cp.State("h1"))
	assert.Zero(t, report.Count(rollout.Updated))
	assert.Equal(t, []rollout.Outcome{out}, report.NeedAttention())
}

func TestRun_ReactivationFailureAfterUpdate(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	cp := hvtesting.WithHosts(h)
	cp.Errors["activate:h1"] = errors.New("cannot activate host")
	f := newFixture(cp)
	withUpdates(f.dialer, h.Address)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), []cluster.Host{h})

	require.NoError(t, err)
	out, _ := report.Outcome("h1")
	assert.Equal(t, rollout.Failed, out.Kind)
	assert.True(t, out.NeedsAttention)
	assert.Equal(t, 1, report.Failures)
}

func TestRun_NoUpdatesReactivationFailureCounts(t *testing.T) {
	t.Parallel()
	h := hvtesting.NewHost("h1", 0)
	cp := hvtesting.WithHosts(h)
	cp.Errors["activate:h1"] = errors.New("cannot activate host")
	f := newFixture(cp)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), []cluster.Host{h})

	require.NoError(t, err)
	out, _ := report.Outcome("h1")
	assert.Equal(t, rollout.NoUpdatesAvailable, out.Kind)
	assert.True(t, out.NeedsAttention)
	assert.Equal(t, 1, report.Failures)
}

func TestRun_DrainTimeoutContinues(t *testing.T) {
	t.Parallel()
	hosts := []cluster.Host{hvtesting.NewHost("a", 0), hvtesting.NewHost("b", 1)}
	cp := hvtesting.WithHosts(hosts...)
	cp.Stuck["a"] = true
	f := newFixture(cp)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	a, _ := report.Outcome("a")
	assert.Equal(t, rollout.Failed, a.Kind)
	assert.Contains(t, a.Reason, rollout.ErrDrainTimeout.Error())
	assert.Equal(t, "up", a.LastState)
	assert.Equal(t, 1, cp.CallCount("deactivate", "a"))
	b, _ := report.Outcome("b")
	assert.Equal(t, rollout.NoUpdatesAvailable, b.Kind)
}

func failingHosts(n int) ([]cluster.Host, *hvtesting.FakeControlPlane) {
	var hosts []cluster.Host
	for i := range n {
		hosts = append(hosts, hvtesting.NewHost(string(rune('a'+i)), i))
	}
	cp := hvtesting.WithHosts(hosts...)
	return hosts, cp
}

func TestRun_ThresholdDeclined(t *testing.T) {
	t.Parallel()
	hosts, cp := failingHosts(5)
	for _, h := range hosts[:3] {
		cp.SetState(h.Name, cluster.StateOther)
	}
	f := newFixture(cp)
	f.confirmer = &hvtesting.MockConfirmer{}
	f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(false, nil).Once()

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, 3, report.Failures)
	assert.Equal(t, 3, report.Count(rollout.Failed))
	assert.Equal(t, 2, report.Count(rollout.Skipped))
	d, _ := report.Outcome("d")
	assert.Equal(t, "rollout aborted", d.Reason)
	assert.Empty(t, cp.Requests(), "nothing touched after refusal")
	f.confirmer.AssertExpectations(t)
}

func TestRun_ThresholdConfirmedBeforeEveryHost(t *testing.T) {
	t.Parallel()
	hosts, cp := failingHosts(6)
	for _, h := range hosts[:3] {
		cp.SetState(h.Name, cluster.StateOther)
	}
	f := newFixture(cp)
	f.confirmer = &hvtesting.MockConfirmer{}
	f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(true, nil)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.False(t, report.Aborted)
	assert.Equal(t, 3, report.Failures)
	assert.Equal(t, 3, report.Count(rollout.NoUpdatesAvailable))
	// asked before d, e and f even though no further host failed
	f.confirmer.AssertNumberOfCalls(t, "Confirm", 3)
}

func TestRun_ThresholdDeclinedLater(t *testing.T) {
	t.Parallel()
	hosts, cp := failingHosts(6)
	for _, h := range hosts[:3] {
		cp.SetState(h.Name, cluster.StateOther)
	}
	f := newFixture(cp)
	f.confirmer = &hvtesting.MockConfirmer{}
	f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(true, nil).Once()
	f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(false, nil).Once()

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, report.Count(rollout.NoUpdatesAvailable))
	assert.Equal(t, 2, report.Count(rollout.Skipped))
	f.confirmer.AssertExpectations(t)
}

func TestRun_ThresholdWithoutConfirmerFailsClosed(t *testing.T) {
	t.Parallel()
	hosts, cp := failingHosts(4)
	for _, h := range hosts[:3] {
		cp.SetState(h.Name, cluster.StateOther)
	}
	f := newFixture(cp)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.True(t, report.Aborted)
	d, _ := report.Outcome("d")
	assert.Equal(t, rollout.Skipped, d.Kind)
}

func TestRun_ConfirmerErrorFailsClosed(t *testing.T) {
	t.Parallel()
	hosts, cp := failingHosts(4)
	for _, h := range hosts[:3] {
		cp.SetState(h.Name, cluster.StateOther)
	}
	f := newFixture(cp)
	f.confirmer = &hvtesting.MockConfirmer{}
	f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(true, errors.New("no terminal"))

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.True(t, report.Aborted)
}

func TestRun_CustomThreshold(t *testing.T) {
	t.Parallel()
	hosts, cp := failingHosts(3)
	cp.SetState("a", cluster.StateOther)
	f := newFixture(cp)

	opts := testOptions()
	opts.FailureThreshold = 0 // default
	report, err := rollout.NewCoordinator(f.deps(), opts).Run(context.Background(), hosts)
	require.NoError(t, err)
	assert.False(t, report.Aborted)

	hosts, cp = failingHosts(3)
	cp.SetState("a", cluster.StateOther)
	cp.SetState("b", cluster.StateOther)
	f = newFixture(cp)
	opts.FailureThreshold = 1
	report, err = rollout.NewCoordinator(f.deps(), opts).Run(context.Background(), hosts)
	require.NoError(t, err)
	assert.True(t, report.Aborted)
}

func TestRun_FatalConnectionStops(t *testing.T) {
	t.Parallel()
	hosts := threeHosts()
	f := newFixture(hvtesting.WithHosts(hosts...))
	f.dialer.DialErr[hosts[1].Address] = errors.New("ssh: unable to authenticate")

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.ErrorIs(t, err, rollout.ErrFatalConnection)
	require.NotNil(t, report)
	assert.Equal(t, []string{"H2"}, outcomeHosts(report))
	h2, _ := report.Outcome("H2")
	assert.True(t, h2.NeedsAttention)
	assert.Equal(t, "maintenance", h2.LastState)
	assert.Equal(t, []string{hosts[1].Address}, f.dialer.Dialed())
}

func TestRun_ControlPlaneUnreachableStops(t *testing.T) {
	t.Parallel()
	hosts := threeHosts()
	cp := hvtesting.WithHosts(hosts...)
	cp.Errors["get:H2"] = cluster.ErrUnreachable
	f := newFixture(cp)

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(context.Background(), hosts)

	require.ErrorIs(t, err, cluster.ErrUnreachable)
	assert.Len(t, report.Outcomes, 1)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()
	hosts := threeHosts()
	f := newFixture(hvtesting.WithHosts(hosts...))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := rollout.NewCoordinator(f.deps(), testOptions()).Run(ctx, hosts)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, f.cp.Requests())
}

func TestRun_ObserverSeesEveryPhase(t *testing.T) {
	t.Parallel()
	hosts := []cluster.Host{hvtesting.NewHost("H1", 2), hvtesting.NewHost("H2", 0)}
	f := newFixture(hvtesting.WithHosts(hosts...))
	withUpdates(f.dialer, hosts[0].Address)
	obs := &hvtesting.RecordingObserver{}
	deps := f.deps()
	deps.Observer = obs

	_, err := rollout.NewCoordinator(deps, testOptions()).Run(context.Background(), hosts)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"start:H2 1/2", "phase:H2 drain", "phase:H2 patch", "phase:H2 undrain", "done:H2 no-updates",
		"start:H1 2/2", "phase:H1 drain", "phase:H1 patch", "phase:H1 verify", "phase:H1 undrain", "done:H1 updated",
	}, obs.Events())
}
