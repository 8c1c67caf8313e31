package rollout

import (
	"context"
	"fmt"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/logging"
)

// Service exposes the two operations the CLI offers: listing the estate
// and rolling out patches to the patchable hosts of selected datacenters.
type Service struct {
	inventory   *cluster.Inventory
	coordinator *Coordinator
	osTypes     []string
	log         logging.Logger
}

// NewService creates a service. osTypes lists the OS types considered
// patchable; empty accepts every OS.
func NewService(deps Deps, opts Options, osTypes []string) *Service {
	return &Service{
		inventory:   cluster.NewInventory(deps.ControlPlane),
		coordinator: NewCoordinator(deps, opts),
		osTypes:     osTypes,
		log:         deps.logger(),
	}
}

// List returns the current state of the selected datacenters (all when
// none are given). It changes nothing.
func (s *Service) List(ctx context.Context, datacenters ...string) ([]cluster.Datacenter, error) {
	return s.inventory.Snapshot(ctx, datacenters...)
}

// PlanFor returns the hosts a rollout over datacenters would process, in
// processing order, and the hosts it would leave out.
func (s *Service) PlanFor(ctx context.Context, datacenters ...string) ([]cluster.Host, []cluster.Exclusion, error) {
	snapshot, err := s.inventory.Snapshot(ctx, datacenters...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cluster state: %w", err)
	}
	hosts, excluded := cluster.SelectPatchable(snapshot, s.osTypes)
	return Plan(hosts), excluded, nil
}

// Rollout patches every in-service host with a patchable OS in the selected
// datacenters. Hosts left out are recorded as skipped. The report is
// returned even when err is non-nil, unless the cluster state could not be
// read at all.
func (s *Service) Rollout(ctx context.Context, datacenters ...string) (*Report, error) {
	hosts, excluded, err := s.PlanFor(ctx, datacenters...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, hosts, excluded)
}

// Run executes a plan previously returned by PlanFor without reading the
// inventory again, so the hosts processed are exactly the ones shown.
func (s *Service) Run(ctx context.Context, hosts []cluster.Host, excluded []cluster.Exclusion) (*Report, error) {
	for _, ex := range excluded {
		s.log.WithField("host", ex.Host.Name).Infof("skipping: %s", ex.Reason)
	}

	report, err := s.coordinator.Run(ctx, hosts)
	for _, ex := range excluded {
		report.Skip(ex.Host.Name, ex.Host.ActiveVMs, ex.Host.StateName(), ex.Reason)
	}
	return report, err
}
