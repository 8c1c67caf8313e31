package rollout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
)

// maxStderr bounds how much stderr is kept in an outcome reason.
const maxStderr = 2048

// Commands are the shell commands of the patch protocol.
type Commands struct {
	// Clean clears package manager caches. Its failure is only logged.
	Clean string `yaml:"clean"`
	// Check lists pending updates. Exit 0 means none, UpdatesAvailableExit
	// means some, anything else is an error.
	Check string `yaml:"check"`
	// UpdatesAvailableExit is the exit status Check uses to report pending updates.
	UpdatesAvailableExit int `yaml:"updates_available_exit"`
	// Apply installs the updates.
	Apply string `yaml:"apply"`
	// Reboot must return immediately; the reboot itself happens detached.
	Reboot string `yaml:"reboot"`
}

// DefaultCommands returns the yum-based protocol.
func DefaultCommands() Commands {
	return Commands{
		Clean:                "yum clean all",
		Check:                "yum check-update -q",
		UpdatesAvailableExit: 100,
		Apply:                "yum -y update",
		Reboot:               "nohup sh -c 'sleep 2; systemctl reboot' >/dev/null 2>&1 &",
	}
}

func (c Commands) withDefaults() Commands {
	def := DefaultCommands()
	if c.Clean == "" {
		c.Clean = def.Clean
	}
	if c.Check == "" {
		c.Check = def.Check
	}
	if c.UpdatesAvailableExit == 0 {
		c.UpdatesAvailableExit = def.UpdatesAvailableExit
	}
	if c.Apply == "" {
		c.Apply = def.Apply
	}
	if c.Reboot == "" {
		c.Reboot = def.Reboot
	}
	return c
}

// Patcher runs the patch protocol on a drained host.
type Patcher struct {
	dialer Dialer
	cmds   Commands
	log    logging.Logger
}

// NewPatcher creates a patcher.
func NewPatcher(deps Deps, cmds Commands) *Patcher {
	return &Patcher{
		dialer: deps.Dialer,
		cmds:   cmds.withDefaults(),
		log:    deps.logger(),
	}
}

// Patch checks for and applies updates on host, then requests a reboot.
//
// The returned outcome is NoUpdatesAvailable, Updated or Failed. A non-nil
// error means the session could not be set up (ErrFatalConnection) or ctx
// ended; the rollout must stop.
func (p *Patcher) Patch(ctx context.Context, host cluster.Host) (Outcome, error) {
	log := p.log.WithField("host", host.Name)

	sess, err := p.dialer.Dial(ctx, host.Address)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w to %s (%s): %w", ErrFatalConnection, host.Name, host.Address, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithError(err).Debug("failed to close remote session")
		}
	}()

	// Best effort: stale metadata only slows the check down.
	if code, stderr, err := p.run(ctx, sess, p.cmds.Clean, io.Discard); err != nil || code != 0 {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.WithError(err).WithField("exit", code).Warnf("cache clean failed: %s", stderr)
	}

	code, stderr, err := p.run(ctx, sess, p.cmds.Check, io.Discard)
	if err != nil {
		return p.commandError(ctx, "check", err)
	}
	switch code {
	case 0:
		log.Info("no updates available")
		return Outcome{Kind: NoUpdatesAvailable}, nil
	case p.cmds.UpdatesAvailableExit:
		log.Info("updates available")
	default:
		return failedOutcome(fmt.Errorf("%w: check exited %d: %s", ErrRemoteCommand, code, stderr)), nil
	}

	out := log.WriterLevel(logrus.DebugLevel)
	code, stderr, err = p.run(ctx, sess, p.cmds.Apply, out)
	_ = out.Close()
	if err != nil {
		return p.commandError(ctx, "apply", err)
	}
	if code != 0 {
		return failedOutcome(fmt.Errorf("%w: apply exited %d: %s", ErrRemoteCommand, code, stderr)), nil
	}
	log.Info("updates applied")

	// The status only says whether the reboot was accepted.
	code, stderr, err = p.run(ctx, sess, p.cmds.Reboot, io.Discard)
	if err != nil || code != 0 {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.WithError(err).WithField("exit", code).Warnf("reboot request reported failure: %s", stderr)
	} else {
		log.Info("reboot requested")
	}

	return Outcome{Kind: Updated}, nil
}

func (p *Patcher) run(ctx context.Context, sess Session, command string, stdout io.Writer) (int, string, error) {
	var stderr bytes.Buffer
	code, err := sess.Run(ctx, command, stdout, &stderr)
	return code, truncate(strings.TrimSpace(stderr.String()), maxStderr), err
}

// commandError turns a transport failure during a command into an outcome.
// Cancellation stops the rollout instead.
func (p *Patcher) commandError(ctx context.Context, step string, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	return failedOutcome(fmt.Errorf("%w: %s: %w", ErrRemoteCommand, step, err)), nil
}

func failedOutcome(err error) Outcome {
	return Outcome{Kind: Failed, Reason: err.Error()}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
