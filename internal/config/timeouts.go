package config

import (
	"os"
	"strconv"
	"time"

	"github.com/imamik/hvroll/internal/rollout"
)

// Timeouts holds all configurable timeout values.
type Timeouts struct {
	WaitTimeout       time.Duration `yaml:"wait"`        // Bound on each drain, undrain, and reachability wait
	PollInterval      time.Duration `yaml:"poll"`        // Delay between state and reachability polls
	RebootGrace       time.Duration `yaml:"reboot_grace"` // Sleep after a reboot request before probing
	SSHConnectTimeout time.Duration `yaml:"ssh_connect"` // TCP connect and handshake bound per SSH attempt
	SSHRetries        int           `yaml:"ssh_retries"` // SSH connection retries after the first attempt
}

// DefaultTimeouts returns the built-in timeouts.
func DefaultTimeouts() Timeouts {
	t := rollout.DefaultTiming()
	return Timeouts{
		WaitTimeout:       t.WaitTimeout,
		PollInterval:      t.PollInterval,
		RebootGrace:       t.GracePeriod,
		SSHConnectTimeout: 10 * time.Second,
		SSHRetries:        3,
	}
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - HVROLL_WAIT_TIMEOUT (default: 60s)
//   - HVROLL_POLL_INTERVAL (default: 1s)
//   - HVROLL_REBOOT_GRACE (default: 10s)
//   - HVROLL_SSH_CONNECT_TIMEOUT (default: 10s)
//   - HVROLL_SSH_RETRIES (default: 3)
func LoadTimeouts() Timeouts {
	return DefaultTimeouts().fromEnv()
}

// fromEnv overrides t with whatever the environment sets.
func (t Timeouts) fromEnv() Timeouts {
	return Timeouts{
		WaitTimeout:       parseDuration("HVROLL_WAIT_TIMEOUT", t.WaitTimeout),
		PollInterval:      parseDuration("HVROLL_POLL_INTERVAL", t.PollInterval),
		RebootGrace:       parseDuration("HVROLL_REBOOT_GRACE", t.RebootGrace),
		SSHConnectTimeout: parseDuration("HVROLL_SSH_CONNECT_TIMEOUT", t.SSHConnectTimeout),
		SSHRetries:        parseInt("HVROLL_SSH_RETRIES", t.SSHRetries),
	}
}

// Timing converts to the rollout's wait bounds.
func (t Timeouts) Timing() rollout.Timing {
	return rollout.Timing{
		PollInterval: t.PollInterval,
		WaitTimeout:  t.WaitTimeout,
		GracePeriod:  t.RebootGrace,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
