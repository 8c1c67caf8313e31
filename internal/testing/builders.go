package testing

import (
	"github.com/imamik/hvroll/internal/cluster"
)

// HostOption adjusts a host built by NewHost.
type HostOption func(*cluster.Host)

// NewHost returns an in-service RHEL host named name with vms active VMs.
// Its address is name + ".example.test".
func NewHost(name string, vms int, opts ...HostOption) cluster.Host {
	h := cluster.Host{
		ID:        "id-" + name,
		Name:      name,
		Address:   name + ".example.test",
		State:     cluster.StateUp,
		RawState:  "up",
		OSType:    "RHEL",
		OSVersion: "7.9",
		ActiveVMs: vms,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// WithState sets the host state and its raw name.
func WithState(state cluster.HostState) HostOption {
	return func(h *cluster.Host) {
		h.State = state
		h.RawState = state.String()
	}
}

// WithRawState sets an unrecognized raw state, e.g. "non_responsive".
func WithRawState(raw string) HostOption {
	return func(h *cluster.Host) {
		h.State = cluster.ParseHostState(raw)
		h.RawState = raw
	}
}

// WithOS sets the OS type.
func WithOS(osType string) HostOption {
	return func(h *cluster.Host) {
		h.OSType = osType
	}
}

// NewCluster returns a cluster holding hosts.
func NewCluster(name string, hosts ...cluster.Host) cluster.Cluster {
	return cluster.Cluster{Name: name, Status: "up", Hosts: hosts}
}

// NewDatacenter returns a datacenter holding clusters.
func NewDatacenter(name string, clusters ...cluster.Cluster) cluster.Datacenter {
	return cluster.Datacenter{Name: name, Status: "up", Clusters: clusters}
}
