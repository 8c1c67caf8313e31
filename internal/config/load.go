package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvEngineAddress  = "RHEV_ENGINE_ADDRESS"
	EnvEngineUsername = "RHEV_ENGINE_USERNAME"
	EnvEnginePassword = "RHEV_ENGINE_PASSWORD"
	EnvHostUsername   = "HYPHOST_USERNAME"
	EnvHostPassword   = "HYPHOST_PASSWORD"
	EnvHostSSHKey     = "HYPHOST_SSH_KEY"
)

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings with any environment variables that are set.
func (c *Config) ApplyEnv() {
	setString(&c.Engine.Address, EnvEngineAddress)
	setString(&c.Engine.Username, EnvEngineUsername)
	setString(&c.Engine.Password, EnvEnginePassword)
	setString(&c.SSH.User, EnvHostUsername)
	setString(&c.SSH.Password, EnvHostPassword)
	setString(&c.SSH.PrivateKeyPath, EnvHostSSHKey)
	c.Rollout.Timeouts = c.Rollout.Timeouts.fromEnv()
}

func setString(dst *string, envVar string) {
	if v, ok := os.LookupEnv(envVar); ok && v != "" {
		*dst = v
	}
}

// PrivateKey reads the configured SSH private key, if any.
func (c *Config) PrivateKey() ([]byte, error) {
	if c.SSH.PrivateKeyPath == "" {
		return nil, nil
	}
	// #nosec G304
	key, err := os.ReadFile(c.SSH.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}
	return key, nil
}
