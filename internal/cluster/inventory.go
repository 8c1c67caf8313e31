package cluster

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Inventory reads datacenter, cluster and host state from the control plane.
// Every call goes back to the control plane; nothing is cached because host
// state changes while a rollout runs.
type Inventory struct {
	cp ControlPlane
}

// NewInventory creates an inventory reader backed by cp.
func NewInventory(cp ControlPlane) *Inventory {
	return &Inventory{cp: cp}
}

// Snapshot returns the selected datacenters with their clusters and hosts.
// An empty selection returns every datacenter. Selecting a datacenter that
// does not exist is an error.
func (i *Inventory) Snapshot(ctx context.Context, datacenters ...string) ([]Datacenter, error) {
	all, err := i.cp.ListDatacenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datacenters: %w", err)
	}

	selected, err := filterDatacenters(all, datacenters)
	if err != nil {
		return nil, err
	}

	for di := range selected {
		dc := &selected[di]
		clusters, err := i.cp.ListClusters(ctx, dc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to list clusters of datacenter %s: %w", dc.Name, err)
		}
		for ci := range clusters {
			c := &clusters[ci]
			hosts, err := i.cp.ListHosts(ctx, c.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to list hosts of cluster %s: %w", c.Name, err)
			}
			for hi := range hosts {
				hosts[hi].Cluster = c.Name
				hosts[hi].Datacenter = dc.Name
			}
			c.Hosts = hosts
			if c.Status == "" {
				c.Status = hostSummary(hosts)
			}
		}
		dc.Clusters = clusters
	}

	return selected, nil
}

// hostSummary stands in for the status of clusters the control plane does
// not report one for.
func hostSummary(hosts []Host) string {
	if len(hosts) == 0 {
		return "no hosts"
	}
	up := 0
	for _, h := range hosts {
		if h.State == StateUp {
			up++
		}
	}
	return fmt.Sprintf("%d/%d hosts up", up, len(hosts))
}

func filterDatacenters(all []Datacenter, names []string) ([]Datacenter, error) {
	if len(names) == 0 {
		return all, nil
	}

	var out []Datacenter
	for _, name := range names {
		idx := slices.IndexFunc(all, func(dc Datacenter) bool {
			return strings.EqualFold(dc.Name, name)
		})
		if idx < 0 {
			return nil, fmt.Errorf("datacenter %q not found", name)
		}
		out = append(out, all[idx])
	}
	return out, nil
}

// Exclusion is a host left out of a rollout and why.
type Exclusion struct {
	Host   Host
	Reason string
}

// SelectPatchable flattens a snapshot into the hosts a rollout may touch:
// in service and running one of the patchable OS types (case-insensitive).
// Hosts are returned in discovery order. An empty osTypes accepts any OS.
func SelectPatchable(snapshot []Datacenter, osTypes []string) ([]Host, []Exclusion) {
	var (
		selected []Host
		excluded []Exclusion
	)
	for _, dc := range snapshot {
		for _, c := range dc.Clusters {
			for _, h := range c.Hosts {
				switch {
				case h.State != StateUp:
					excluded = append(excluded, Exclusion{Host: h, Reason: "host not in service (" + h.StateName() + ")"})
				case !osPatchable(h.OSType, osTypes):
					excluded = append(excluded, Exclusion{Host: h, Reason: "OS type " + quoteOrUnknown(h.OSType) + " not patchable"})
				default:
					selected = append(selected, h)
				}
			}
		}
	}
	return selected, excluded
}

func osPatchable(osType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.ContainsFunc(allowed, func(t string) bool {
		return strings.EqualFold(t, osType)
	})
}

func quoteOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return fmt.Sprintf("%q", s)
}
