// Package tui renders hvroll output for terminals: the estate listing, the
// rollout plan, live progress and the final report.
package tui
