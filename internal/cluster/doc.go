// Package cluster models the control plane's view of a virtualization
// estate (datacenters, clusters, hypervisor hosts) and reads it.
//
// The [ControlPlane] interface is the only way the rest of the tool talks to
// the cluster manager; internal/platform/ovirt implements it against the
// oVirt/RHV engine API and tests substitute fakes.
package cluster
