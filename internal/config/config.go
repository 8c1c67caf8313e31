package config

import (
	"time"

	"github.com/imamik/hvroll/internal/rollout"
)

// Config is the complete hvroll configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	SSH     SSHConfig     `yaml:"ssh"`
	Rollout RolloutConfig `yaml:"rollout"`
	Probe   ProbeConfig   `yaml:"probe"`
	Report  ReportConfig  `yaml:"report"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig locates the management engine.
type EngineConfig struct {
	Address  string        `yaml:"address"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	CAFile   string        `yaml:"ca_file"`
	Insecure bool          `yaml:"insecure"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SSHConfig holds the credentials used on every hypervisor host.
type SSHConfig struct {
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyPath string `yaml:"private_key_path"`
	Port           int    `yaml:"port"`
	// KnownHostsFile enables host key verification when set.
	KnownHostsFile string `yaml:"known_hosts_file"`
}

// RolloutConfig shapes the rollout itself.
type RolloutConfig struct {
	FailureThreshold int              `yaml:"failure_threshold"`
	PatchableOS      []string         `yaml:"patchable_os"`
	Commands         rollout.Commands `yaml:"commands"`
	Timeouts         Timeouts         `yaml:"timeouts"`
}

// ProbeConfig tunes the reachability probe.
type ProbeConfig struct {
	Network  string        `yaml:"network"`
	MaxRTT   time.Duration `yaml:"max_rtt"`
	Attempts int           `yaml:"attempts"`
}

// ReportConfig selects where reports are archived. An empty Bucket
// disables archival.
type ReportConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Username: "admin@internal",
			Timeout:  30 * time.Second,
		},
		SSH: SSHConfig{
			User: "root",
			Port: 22,
		},
		Rollout: RolloutConfig{
			FailureThreshold: 2,
			PatchableOS:      []string{"RHEL", "CentOS", "CentOS Stream"},
			Commands:         rollout.DefaultCommands(),
			Timeouts:         DefaultTimeouts(),
		},
		Probe: ProbeConfig{
			Network:  "ip",
			MaxRTT:   2 * time.Second,
			Attempts: 3,
		},
		Report: ReportConfig{
			Prefix: "hvroll",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Options converts the rollout section to rollout.Options.
func (c *Config) Options() rollout.Options {
	return rollout.Options{
		Timing:           c.Rollout.Timeouts.Timing(),
		Commands:         c.Rollout.Commands,
		FailureThreshold: c.Rollout.FailureThreshold,
	}
}
