package rollout

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/hvroll/internal/cluster"
)

var (
	// ErrInvalidState is returned when a host reports a state the drain
	// transition table has no entry for.
	ErrInvalidState = errors.New("host in unexpected state")

	// ErrDrainTimeout is returned when a host does not reach the requested
	// maintenance state within the wait timeout.
	ErrDrainTimeout = errors.New("timed out waiting for host state change")

	// ErrVerifyTimeout is returned when a rebooted host does not answer
	// within the wait timeout.
	ErrVerifyTimeout = errors.New("timed out waiting for host to come back online")

	// ErrUnexpectedState is returned when a rebooted host is reachable but the
	// control plane does not report it in maintenance.
	ErrUnexpectedState = errors.New("host not in maintenance after reboot")

	// ErrRemoteCommand is returned when a patch command exits with an error status.
	ErrRemoteCommand = errors.New("remote command failed")

	// ErrFatalConnection is returned when no remote session can be set up,
	// e.g. the host is unreachable or rejects the credentials. It aborts the
	// whole rollout.
	ErrFatalConnection = errors.New("cannot establish remote session")
)

// StateError carries the last state observed for a host when a state
// transition could not be completed.
type StateError struct {
	Host  string
	State cluster.HostState
	Raw   string
	Err   error
}

func (e *StateError) Error() string {
	state := e.Raw
	if state == "" {
		state = e.State.String()
	}
	return fmt.Sprintf("host %s (state %s): %v", e.Host, state, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func stateError(h cluster.Host, err error) *StateError {
	return &StateError{Host: h.Name, State: h.State, Raw: h.RawState, Err: err}
}

// IsFatal reports whether err must stop the rollout instead of being
// recorded against a single host.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalConnection) ||
		errors.Is(err, cluster.ErrUnreachable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
