package rollout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
)

const (
	phaseDrain   = "drain"
	phasePatch   = "patch"
	phaseVerify  = "verify"
	phaseUndrain = "undrain"
)

// Coordinator runs a rollout over a set of hosts.
type Coordinator struct {
	drainer   *Drainer
	patcher   *Patcher
	verifier  *Verifier
	confirmer Confirmer
	metrics   *Metrics
	observer  Observer
	log       logging.Logger
	threshold int
	now       func() time.Time
}

// NewCoordinator wires the rollout components from deps.
func NewCoordinator(deps Deps, opts Options) *Coordinator {
	threshold := opts.FailureThreshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	confirmer := deps.Confirmer
	if confirmer == nil {
		confirmer = Decline{}
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{
		drainer:   NewDrainer(deps, opts.Timing),
		patcher:   NewPatcher(deps, opts.Commands),
		verifier:  NewVerifier(deps, opts.Timing),
		confirmer: confirmer,
		metrics:   deps.Metrics,
		observer:  observer,
		log:       deps.logger(),
		threshold: threshold,
		now:       time.Now,
	}
}

// Run patches hosts one by one in Plan order and returns the report.
//
// Host-level failures are recorded and the rollout moves on. Once more than
// the failure threshold have failed, the operator must confirm before each
// further host starts; a refusal records the remaining hosts as skipped and
// ends the rollout without error. A non-nil error means the rollout was
// stopped by a fatal condition; the report then covers the hosts handled
// so far.
func (c *Coordinator) Run(ctx context.Context, hosts []cluster.Host) (*Report, error) {
	plan := Plan(hosts)
	report := newReport(c.now())
	defer func() {
		report.Finished = c.now()
		c.metrics.recordFinish(report)
	}()

	c.log.Infof("rollout of %d hosts starting", len(plan))
	for i, host := range plan {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if report.Failures > c.threshold {
			proceed, err := c.confirm(ctx, report.Failures, len(plan)-i)
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			if err != nil {
				c.log.WithError(err).Warn("no confirmation available, stopping rollout")
				proceed = false
			}
			if !proceed {
				c.abort(report, plan[i:])
				return report, nil
			}
		}

		c.log.WithField("host", host.Name).Infof("processing host %d/%d (%d active VMs)", i+1, len(plan), host.ActiveVMs)
		c.observer.HostStarted(host, i+1, len(plan))
		start := c.now()
		outcome, err := c.processHost(ctx, host)
		outcome.Host = host.Name
		outcome.ActiveVMs = host.ActiveVMs
		outcome.Duration = c.now().Sub(start)
		report.record(outcome)
		c.metrics.recordOutcome(outcome, report.Failures)
		c.logOutcome(outcome)
		c.observer.HostFinished(outcome)

		if err != nil {
			c.log.WithError(err).WithField("host", host.Name).Error("rollout stopped")
			return report, err
		}
	}

	c.log.Infof("rollout finished: %d updated, %d without updates, %d failed",
		report.Count(Updated), report.Count(NoUpdatesAvailable), report.Count(Failed))
	return report, nil
}

func (c *Coordinator) confirm(ctx context.Context, failures, remaining int) (bool, error) {
	question := fmt.Sprintf("%d hosts failed (threshold %d). Continue with the remaining %d hosts?",
		failures, c.threshold, remaining)
	c.log.Warn(question)
	return c.confirmer.Confirm(ctx, question)
}

func (c *Coordinator) abort(report *Report, remaining []cluster.Host) {
	c.log.Warnf("rollout aborted, %d hosts left untouched", len(remaining))
	report.Aborted = true
	for _, h := range remaining {
		report.Skip(h.Name, h.ActiveVMs, h.StateName(), "rollout aborted")
		c.observer.HostFinished(report.Outcomes[len(report.Outcomes)-1])
	}
}

// processHost runs drain, patch, verify and undrain for one host. The error
// is non-nil only for conditions that must stop the whole rollout.
func (c *Coordinator) processHost(ctx context.Context, host cluster.Host) (Outcome, error) {
	if err := c.phase(host, phaseDrain, func() error { return c.drainer.SetMaintenance(ctx, host, true) }); err != nil {
		out := Outcome{Kind: Failed, Reason: "drain: " + err.Error(), LastState: lastState(err), NeedsAttention: true}
		return out, fatalOnly(err)
	}

	var (
		patched  Outcome
		patchErr error
	)
	c.timed(host, phasePatch, func() bool {
		patched, patchErr = c.patcher.Patch(ctx, host)
		return patchErr == nil && patched.Kind != Failed
	})
	if patchErr != nil {
		out := Outcome{Kind: Failed, Reason: "patch: " + patchErr.Error(), LastState: cluster.StateMaintenance.String(), NeedsAttention: true}
		return out, patchErr
	}

	switch patched.Kind {
	case NoUpdatesAvailable:
		out := Outcome{Kind: NoUpdatesAvailable, LastState: cluster.StateUp.String()}
		if err := c.undrain(ctx, host); err != nil {
			out.Reason = "reactivate: " + err.Error()
			out.LastState = lastStateOr(err, cluster.StateMaintenance)
			out.NeedsAttention = true
			return out, fatalOnly(err)
		}
		return out, nil

	case Updated:
		if err := c.phase(host, phaseVerify, func() error { return c.verifier.WaitOnline(ctx, host) }); err != nil {
			out := Outcome{Kind: Failed, Reason: "verify: " + err.Error(), LastState: lastStateOr(err, cluster.StateMaintenance), NeedsAttention: true}
			return out, fatalOnly(err)
		}
		if err := c.undrain(ctx, host); err != nil {
			out := Outcome{Kind: Failed, Reason: "reactivate: " + err.Error(), LastState: lastStateOr(err, cluster.StateMaintenance), NeedsAttention: true}
			return out, fatalOnly(err)
		}
		return Outcome{Kind: Updated, LastState: cluster.StateUp.String()}, nil

	default:
		out := Outcome{Kind: Failed, Reason: "patch: " + patched.Reason, LastState: cluster.StateUp.String()}
		if err := c.undrain(ctx, host); err != nil {
			out.Reason += "; reactivate: " + err.Error()
			out.LastState = lastStateOr(err, cluster.StateMaintenance)
			out.NeedsAttention = true
			return out, fatalOnly(err)
		}
		return out, nil
	}
}

func (c *Coordinator) undrain(ctx context.Context, host cluster.Host) error {
	return c.phase(host, phaseUndrain, func() error { return c.drainer.SetMaintenance(ctx, host, false) })
}

func (c *Coordinator) phase(host cluster.Host, name string, fn func() error) error {
	var err error
	c.timed(host, name, func() bool {
		err = fn()
		return err == nil
	})
	return err
}

// timed reports the phase to the observer and records its duration under
// the result fn returns.
func (c *Coordinator) timed(host cluster.Host, name string, fn func() bool) {
	c.observer.PhaseStarted(host, name)
	start := c.now()
	ok := fn()
	c.metrics.observePhase(name, start, ok)
}

func (c *Coordinator) logOutcome(o Outcome) {
	log := c.log.WithField("host", o.Host).WithField("outcome", o.Kind.String())
	switch {
	case o.NeedsAttention:
		log.Errorf("host needs manual attention (left %s): %s", o.LastState, o.Reason)
	case o.Kind == Failed:
		log.Errorf("host failed: %s", o.Reason)
	default:
		log.Infof("host done in %s", o.Duration.Round(time.Second))
	}
}

// fatalOnly passes err through when it must stop the rollout.
func fatalOnly(err error) error {
	if IsFatal(err) {
		return err
	}
	return nil
}

func lastState(err error) string {
	var se *StateError
	if errors.As(err, &se) {
		if se.Raw != "" {
			return se.Raw
		}
		return se.State.String()
	}
	return ""
}

func lastStateOr(err error, fallback cluster.HostState) string {
	if s := lastState(err); s != "" {
		return s
	}
	return fallback.String()
}
