package rollout

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
)

// drainAction is what the drainer does for a (state, target) pair.
type drainAction int

const (
	// actionNone: the host is already where it should be.
	actionNone drainAction = iota
	// actionRequest: submit the toggle, then wait for the target state.
	actionRequest
	// actionAwait: a transition towards the target is already in flight.
	actionAwait
	// actionSettle: wait for Up or Maintenance, then look the pair up again.
	actionSettle
	// actionReject: the state is not one the drainer can act on.
	actionReject
)

type transition struct {
	state       cluster.HostState
	maintenance bool
}

// drainTable holds every transition the drainer supports. Missing pairs
// are rejected.
var drainTable = map[transition]drainAction{
	{cluster.StateUp, true}:                      actionRequest,
	{cluster.StateMaintenance, true}:             actionNone,
	{cluster.StatePreparingForMaintenance, true}: actionAwait,
	{cluster.StateRebooting, true}:               actionSettle,

	{cluster.StateMaintenance, false}:             actionRequest,
	{cluster.StateUp, false}:                      actionNone,
	{cluster.StatePreparingForMaintenance, false}: actionSettle,
	{cluster.StateRebooting, false}:               actionSettle,
}

func lookupAction(state cluster.HostState, maintenance bool) drainAction {
	action, ok := drainTable[transition{state: state, maintenance: maintenance}]
	if !ok {
		return actionReject
	}
	return action
}

func targetState(maintenance bool) cluster.HostState {
	if maintenance {
		return cluster.StateMaintenance
	}
	return cluster.StateUp
}

// Drainer moves hosts in and out of maintenance.
type Drainer struct {
	cp     cluster.ControlPlane
	timing Timing
	log    logging.Logger
}

// NewDrainer creates a drainer.
func NewDrainer(deps Deps, timing Timing) *Drainer {
	return &Drainer{
		cp:     deps.ControlPlane,
		timing: timing.withDefaults(),
		log:    deps.logger(),
	}
}

// SetMaintenance drives host into maintenance (true) or back into service
// (false) and blocks until the control plane reports the target state.
//
// The host's current state is re-read first, so the passed value only needs
// a valid name. At most one activate/deactivate request is submitted per call.
// Failures are *StateError values wrapping ErrInvalidState or ErrDrainTimeout,
// or control-plane errors.
func (d *Drainer) SetMaintenance(ctx context.Context, host cluster.Host, maintenance bool) error {
	log := d.log.WithField("host", host.Name).WithField("maintenance", maintenance)

	current, err := d.cp.GetHost(ctx, host.Name)
	if err != nil {
		return fmt.Errorf("failed to read state of host %s: %w", host.Name, err)
	}

	target := targetState(maintenance)
	for {
		switch lookupAction(current.State, maintenance) {
		case actionNone:
			log.Debugf("host already %s", current.StateName())
			return nil

		case actionReject:
			return stateError(current, ErrInvalidState)

		case actionRequest:
			log.Infof("requesting %s (currently %s)", verb(maintenance), current.StateName())
			if err := d.request(ctx, current, maintenance); err != nil {
				return fmt.Errorf("failed to %s host %s: %w", verb(maintenance), host.Name, err)
			}
			return d.await(ctx, current, target)

		case actionAwait:
			log.Infof("host is %s, waiting for %s", current.StateName(), target)
			return d.await(ctx, current, target)

		case actionSettle:
			log.Infof("host is %s, waiting for it to settle", current.StateName())
			current, err = d.settle(ctx, current)
			if err != nil {
				return err
			}
		}
	}
}

func (d *Drainer) request(ctx context.Context, host cluster.Host, maintenance bool) error {
	if maintenance {
		return d.cp.Deactivate(ctx, host)
	}
	return d.cp.Activate(ctx, host)
}

// await polls until the host reports target.
func (d *Drainer) await(ctx context.Context, host cluster.Host, target cluster.HostState) error {
	last := host
	err := d.poll(ctx, &last, func(h cluster.Host) bool {
		return h.State == target
	})
	if errors.Is(err, errPollTimeout) {
		return stateError(last, fmt.Errorf("%w: wanted %s", ErrDrainTimeout, target))
	}
	return err
}

// settle polls until the host is either up or in maintenance and returns
// that observation.
func (d *Drainer) settle(ctx context.Context, host cluster.Host) (cluster.Host, error) {
	last := host
	err := d.poll(ctx, &last, func(h cluster.Host) bool {
		return h.State == cluster.StateUp || h.State == cluster.StateMaintenance
	})
	if errors.Is(err, errPollTimeout) {
		return last, stateError(last, fmt.Errorf("%w: wanted up or maintenance", ErrDrainTimeout))
	}
	return last, err
}

func (d *Drainer) poll(ctx context.Context, last *cluster.Host, done func(cluster.Host) bool) error {
	return pollUntil(ctx, d.timing.PollInterval, d.timing.WaitTimeout, func(ctx context.Context) (bool, error) {
		h, err := d.cp.GetHost(ctx, last.Name)
		if err != nil {
			return false, fmt.Errorf("failed to poll host %s: %w", last.Name, err)
		}
		*last = h
		return done(h), nil
	})
}

func verb(maintenance bool) string {
	if maintenance {
		return "deactivate"
	}
	return "activate"
}
