package cluster

import (
	"context"
	"errors"
)

// ErrUnreachable marks failures to talk to the control plane at all, as
// opposed to a request it rejected. A rollout cannot continue past it.
var ErrUnreachable = errors.New("control plane unreachable")

// ErrHostNotFound is returned by GetHost when no host carries the name.
var ErrHostNotFound = errors.New("host not found")

// ControlPlane is the narrow view of the cluster manager the rollout needs.
//
// Activate and Deactivate only submit the request. Callers observe the
// outcome by polling GetHost.
type ControlPlane interface {
	ListDatacenters(ctx context.Context) ([]Datacenter, error)
	ListClusters(ctx context.Context, datacenter string) ([]Cluster, error)
	ListHosts(ctx context.Context, cluster string) ([]Host, error)
	GetHost(ctx context.Context, name string) (Host, error)
	Activate(ctx context.Context, host Host) error
	Deactivate(ctx context.Context, host Host) error
	Close() error
}
