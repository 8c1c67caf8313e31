package config

import (
	"errors"
	"fmt"
	"strings"
)

var validProbeNetworks = map[string]bool{
	"ip":  true, // raw ICMP, needs CAP_NET_RAW
	"udp": true, // unprivileged ICMP datagram socket
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Engine.Address) == "" {
		errs = append(errs, fmt.Errorf("engine address is required (set %s)", EnvEngineAddress))
	}
	if c.Engine.Username == "" {
		errs = append(errs, fmt.Errorf("engine username is required"))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("engine timeout must not be negative"))
	}

	if c.SSH.User == "" {
		errs = append(errs, fmt.Errorf("ssh user is required"))
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh port %d out of range", c.SSH.Port))
	}

	if c.Rollout.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("failure threshold must not be negative"))
	}
	cmds := c.Rollout.Commands
	if cmds.Check == "" || cmds.Apply == "" || cmds.Reboot == "" {
		errs = append(errs, fmt.Errorf("rollout commands need check plus apply plus reboot"))
	}
	if cmds.UpdatesAvailableExit == 0 {
		errs = append(errs, fmt.Errorf("updates-available exit code must not be 0"))
	}

	t := c.Rollout.Timeouts
	if t.WaitTimeout <= 0 || t.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("wait timeout and poll interval must be positive"))
	} else if t.PollInterval > t.WaitTimeout {
		errs = append(errs, fmt.Errorf("poll interval %s exceeds wait timeout %s", t.PollInterval, t.WaitTimeout))
	}
	if t.RebootGrace < 0 || t.SSHConnectTimeout < 0 || t.SSHRetries < 0 {
		errs = append(errs, fmt.Errorf("reboot grace, ssh connect timeout and ssh retries must not be negative"))
	}

	if !validProbeNetworks[c.Probe.Network] {
		errs = append(errs, fmt.Errorf("probe network %q must be ip or udp", c.Probe.Network))
	}

	if c.Report.Bucket != "" && c.Report.AccessKey != "" && c.Report.SecretKey == "" {
		errs = append(errs, fmt.Errorf("report secret key is required with an access key"))
	}

	return errors.Join(errs...)
}
