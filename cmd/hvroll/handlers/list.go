package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imamik/hvroll/internal/logging"
	"github.com/imamik/hvroll/internal/rollout"
	"github.com/imamik/hvroll/internal/ui/tui"
)

// ListOptions contains options for the list command.
type ListOptions struct {
	Common
	JSON bool
}

// List prints the datacenters, clusters and hosts the engine reports.
func List(ctx context.Context, opts ListOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := logging.New("list")

	cp, err := connectEngine(ctx, cfg.Engine)
	if err != nil {
		return err
	}
	defer closeQuietly(cp, log)

	svc := rollout.NewService(rollout.Deps{ControlPlane: cp, Logger: log}, cfg.Options(), cfg.Rollout.PatchableOS)
	snapshot, err := svc.List(ctx, opts.Datacenters...)
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}
	return tui.RenderInventory(stdout, snapshot)
}
