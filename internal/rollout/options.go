package rollout

import (
	"context"
	"io"
	"time"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
)

const (
	defaultPollInterval     = 1 * time.Second
	defaultWaitTimeout      = 60 * time.Second
	defaultGracePeriod      = 10 * time.Second
	defaultFailureThreshold = 2
)

// Timing bounds every wait in a rollout.
type Timing struct {
	// PollInterval is the delay between state and reachability polls.
	PollInterval time.Duration
	// WaitTimeout bounds each individual wait (drain, undrain, reachability).
	WaitTimeout time.Duration
	// GracePeriod is slept after requesting a reboot so the host actually
	// goes down before reachability is polled.
	GracePeriod time.Duration
}

// DefaultTiming returns the production timing.
func DefaultTiming() Timing {
	return Timing{
		PollInterval: defaultPollInterval,
		WaitTimeout:  defaultWaitTimeout,
		GracePeriod:  defaultGracePeriod,
	}
}

func (t Timing) withDefaults() Timing {
	if t.PollInterval <= 0 {
		t.PollInterval = defaultPollInterval
	}
	if t.WaitTimeout <= 0 {
		t.WaitTimeout = defaultWaitTimeout
	}
	if t.GracePeriod < 0 {
		t.GracePeriod = 0
	}
	return t
}

// Options configures a rollout.
type Options struct {
	Timing   Timing
	Commands Commands
	// FailureThreshold is the number of failed hosts tolerated before the
	// operator must confirm each further step. Zero means the default (2).
	FailureThreshold int
}

// Dialer opens a remote command session to a host address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (Session, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (Session, error) {
	return f(ctx, address)
}

// Session runs commands on one host. Run blocks until the command exits and
// returns its exit status; err is only set when the command could not be run
// or its status could not be collected.
type Session interface {
	Run(ctx context.Context, command string, stdout, stderr io.Writer) (exitCode int, err error)
	Close() error
}

// Prober checks whether an address answers on the network.
type Prober interface {
	Probe(ctx context.Context, address string) bool
}

// Confirmer asks the operator whether to go on.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Observer follows rollout progress. It is called from the rollout
// goroutine and must return quickly.
type Observer interface {
	HostStarted(host cluster.Host, index, total int)
	PhaseStarted(host cluster.Host, phase string)
	HostFinished(outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) HostStarted(cluster.Host, int, int) {}
func (nopObserver) PhaseStarted(cluster.Host, string) {}
func (nopObserver) HostFinished(Outcome) {}

// Deps are the collaborators shared by all rollout components. They are
// built once at startup and never mutated afterwards.
type Deps struct {
	ControlPlane cluster.ControlPlane
	Dialer       Dialer
	Prober       Prober
	Confirmer    Confirmer
	Metrics      *Metrics
	Observer     Observer
	Logger       logging.Logger
}

func (d Deps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.Discard()
	}
	return d.Logger
}
