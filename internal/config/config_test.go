package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	EnvEngineAddress, EnvEngineUsername, EnvEnginePassword,
	EnvHostUsername, EnvHostPassword, EnvHostSSHKey,
	"HVROLL_WAIT_TIMEOUT", "HVROLL_POLL_INTERVAL", "HVROLL_REBOOT_GRACE",
	"HVROLL_SSH_CONNECT_TIMEOUT", "HVROLL_SSH_RETRIES",
}

// clearEnv blanks every variable the package reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hvroll.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEngineAddress, "engine.example.test")
	t.Setenv(EnvEnginePassword, "engine-pw")
	t.Setenv(EnvHostPassword, "host-pw")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "engine.example.test", cfg.Engine.Address)
	assert.Equal(t, "admin@internal", cfg.Engine.Username)
	assert.Equal(t, "engine-pw", cfg.Engine.Password)
	assert.Equal(t, "root", cfg.SSH.User)
	assert.Equal(t, "host-pw", cfg.SSH.Password)
	assert.Equal(t, 2, cfg.Rollout.FailureThreshold)
	assert.Equal(t, "yum -y update", cfg.Rollout.Commands.Apply)
	assert.Equal(t, 60*time.Second, cfg.Rollout.Timeouts.WaitTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
engine:
  address: https://rhvm.example.test
  username: patcher@internal
  insecure: true
ssh:
  user: admin
  port: 2222
rollout:
  failure_threshold: 5
  patchable_os: [RHEL]
  commands:
    apply: dnf -y upgrade
  timeouts:
    wait: 15m
    poll: 5s
report:
  bucket: rollouts
`)
	t.Setenv(EnvEngineUsername, "ops@internal")
	t.Setenv("HVROLL_POLL_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rhvm.example.test", cfg.Engine.Address)
	assert.Equal(t, "ops@internal", cfg.Engine.Username, "env wins over file")
	assert.True(t, cfg.Engine.Insecure)
	assert.Equal(t, "admin", cfg.SSH.User)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, 5, cfg.Rollout.FailureThreshold)
	assert.Equal(t, []string{"RHEL"}, cfg.Rollout.PatchableOS)
	assert.Equal(t, "dnf -y upgrade", cfg.Rollout.Commands.Apply)
	assert.Equal(t, "yum check-update -q", cfg.Rollout.Commands.Check, "unset commands keep defaults")
	assert.Equal(t, 15*time.Minute, cfg.Rollout.Timeouts.WaitTimeout)
	assert.Equal(t, 2*time.Second, cfg.Rollout.Timeouts.PollInterval)
	assert.Equal(t, "rollouts", cfg.Report.Bucket)
	assert.Equal(t, "hvroll", cfg.Report.Prefix)

	opts := cfg.Options()
	assert.Equal(t, 15*time.Minute, opts.Timing.WaitTimeout)
	assert.Equal(t, 10*time.Second, opts.Timing.GracePeriod)
	assert.Equal(t, 5, opts.FailureThreshold)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeFile(t, "engine:\n  adress: typo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	_, err = Load(writeFile(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine address is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Engine.Address = "engine.example.test"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ssh port", func(c *Config) { c.SSH.Port = 0 }, "ssh port 0 out of range"},
		{"threshold", func(c *Config) { c.Rollout.FailureThreshold = -1 }, "failure threshold"},
		{"apply", func(c *Config) { c.Rollout.Commands.Apply = "" }, "rollout commands"},
		{"exit code", func(c *Config) { c.Rollout.Commands.UpdatesAvailableExit = 0 }, "exit code must not be 0"},
		{"poll", func(c *Config) { c.Rollout.Timeouts.PollInterval = 2 * time.Hour }, "exceeds wait timeout"},
		{"probe", func(c *Config) { c.Probe.Network = "tcp" }, `probe network "tcp"`},
		{"report", func(c *Config) { c.Report.Bucket, c.Report.AccessKey = "b", "ak" }, "secret key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPrivateKey(t *testing.T) {
	c := Default()
	key, err := c.PrivateKey()
	require.NoError(t, err)
	assert.Nil(t, key)

	c.SSH.PrivateKeyPath = writeFile(t, "KEY")
	key, err = c.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, []byte("KEY"), key)

	c.SSH.PrivateKeyPath = filepath.Join(t.TempDir(), "nope")
	_, err = c.PrivateKey()
	require.Error(t, err)
}
