// Package handlers implements the hvroll commands: it loads configuration,
// wires the engine, SSH and probe adapters into the rollout service, and
// renders the results.
package handlers
