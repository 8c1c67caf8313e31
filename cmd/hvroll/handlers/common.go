package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/config"
	"github.com/imamik/hvroll/internal/logging"
	"github.com/imamik/hvroll/internal/platform/ovirt"
	"github.com/imamik/hvroll/internal/platform/probe"
	"github.com/imamik/hvroll/internal/platform/s3"
	"github.com/imamik/hvroll/internal/platform/ssh"
	"github.com/imamik/hvroll/internal/rollout"
	"github.com/imamik/hvroll/internal/ui/prompt"
)

// Common holds the flags shared by list and rollout.
type Common struct {
	ConfigPath  string
	Datacenters []string
	LogLevel    string
	LogJSON     bool
}

// ReportArchiver stores a finished report and returns where it went.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, bucket, prefix string, finished time.Time, report []byte) (string, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig loads configuration (for testing injection).
	loadConfig = config.Load

	// connectEngine opens the control-plane session.
	connectEngine = func(ctx context.Context, cfg config.EngineConfig) (cluster.ControlPlane, error) {
		return ovirt.Connect(ctx, ovirt.Config{
			URL:      cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
			CAFile:   cfg.CAFile,
			Insecure: cfg.Insecure,
			Timeout:  cfg.Timeout,
		})
	}

	// newDialer creates the SSH dialer for hypervisor hosts.
	newDialer = sshDialer

	// newProber creates the reachability probe.
	newProber = func(cfg config.ProbeConfig) rollout.Prober {
		return probe.New(probe.Config{Network: cfg.Network, MaxRTT: cfg.MaxRTT, Attempts: cfg.Attempts})
	}

	// newConfirmer picks the failure-threshold confirmation policy.
	newConfirmer = prompt.Confirmer

	// newArchiver creates the report archiver.
	newArchiver = func(ctx context.Context, cfg config.ReportConfig) (ReportArchiver, error) {
		return s3.NewClient(ctx, s3.Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
		})
	}

	// stdout receives rendered output (for testing injection).
	stdout io.Writer = os.Stdout

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile
)

// load reads the configuration and applies the logging flags.
func (c Common) load() (*config.Config, error) {
	cfg, err := loadConfig(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if c.LogLevel != "" {
		level = c.LogLevel
	}
	if err := logging.Set(logging.Level(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if err := logging.Set(logging.JSON(c.LogJSON || cfg.Log.JSON)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sshDialer(cfg *config.Config) (rollout.Dialer, error) {
	key, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	sshCfg := &ssh.Config{
		Port:        cfg.SSH.Port,
		User:        cfg.SSH.User,
		Password:    cfg.SSH.Password,
		PrivateKey:  key,
		DialTimeout: cfg.Rollout.Timeouts.SSHConnectTimeout,
		MaxRetries:  cfg.Rollout.Timeouts.SSHRetries,
	}
	if cfg.SSH.KnownHostsFile != "" {
		cb, err := ssh.KnownHosts(cfg.SSH.KnownHostsFile)
		if err != nil {
			return nil, err
		}
		sshCfg.HostKeyCallback = cb
	}

	client, err := ssh.NewClient(sshCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid SSH settings: %w", err)
	}
	return rollout.DialerFunc(func(ctx context.Context, address string) (rollout.Session, error) {
		conn, err := client.Dial(ctx, address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}), nil
}

func closeQuietly(cp cluster.ControlPlane, log logging.Logger) {
	if err := cp.Close(); err != nil {
		log.WithError(err).Debug("closing engine session")
	}
}
