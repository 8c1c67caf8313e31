// Package config loads hvroll settings.
//
// Settings come from three layers, later ones winning: built-in defaults,
// an optional YAML file, and environment variables. The environment carries
// the credentials (RHEV_ENGINE_*, HYPHOST_*) and the timeouts (HVROLL_*),
// so a config file can be committed without secrets.
package config
