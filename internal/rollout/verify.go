package rollout

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
)

// Verifier confirms that a rebooted host came back.
type Verifier struct {
	cp     cluster.ControlPlane
	prober Prober
	timing Timing
	log    logging.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(deps Deps, timing Timing) *Verifier {
	return &Verifier{
		cp:     deps.ControlPlane,
		prober: deps.Prober,
		timing: timing.withDefaults(),
		log:    deps.logger(),
	}
}

// WaitOnline blocks until host answers on the network after a reboot and
// the control plane reports it in maintenance. It waits the grace period
// before the first probe so a host that has not gone down yet is not
// mistaken for one that came back.
func (v *Verifier) WaitOnline(ctx context.Context, host cluster.Host) error {
	log := v.log.WithField("host", host.Name)

	log.Debugf("waiting %s for reboot to begin", v.timing.GracePeriod)
	if err := sleep(ctx, v.timing.GracePeriod); err != nil {
		return err
	}

	err := pollUntil(ctx, v.timing.PollInterval, v.timing.WaitTimeout, func(ctx context.Context) (bool, error) {
		return v.prober.Probe(ctx, host.Address), nil
	})
	if errors.Is(err, errPollTimeout) {
		return fmt.Errorf("%w: %s (%s) after %s", ErrVerifyTimeout, host.Name, host.Address, v.timing.WaitTimeout)
	}
	if err != nil {
		return err
	}
	log.Info("host reachable")

	current, err := v.cp.GetHost(ctx, host.Name)
	if err != nil {
		return fmt.Errorf("failed to read state of host %s: %w", host.Name, err)
	}
	if current.State != cluster.StateMaintenance {
		return stateError(current, ErrUnexpectedState)
	}
	return nil
}
