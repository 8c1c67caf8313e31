package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/imamik/hvroll/internal/cluster"
)

// FakeControlPlane is an in-memory cluster.ControlPlane.
//
// Deactivate moves a host to maintenance and Activate back to up, each
// after Transitions intermediate polls. Script queues states that GetHost
// reports before falling back to the host's current state.
type FakeControlPlane struct {
	mu          sync.Mutex
	datacenters []cluster.Datacenter
	hosts       map[string]*cluster.Host
	scripts     map[string][]cluster.HostState
	calls       []string

	// Transitions is the number of GetHost polls a host spends in an
	// intermediate state after an activate/deactivate request.
	Transitions int
	// Stuck lists hosts that accept toggle requests but never change state.
	Stuck map[string]bool
	// Errors maps "op:host" (e.g. "deactivate:h1", "get:h1") or "op" to an error to return.
	Errors map[string]error
	// Closed records whether Close was called.
	Closed bool
}

// NewFakeControlPlane creates a fake holding datacenters.
func NewFakeControlPlane(datacenters ...cluster.Datacenter) *FakeControlPlane {
	f := &FakeControlPlane{
		datacenters: datacenters,
		hosts:       make(map[string]*cluster.Host),
		scripts:     make(map[string][]cluster.HostState),
		Stuck:       make(map[string]bool),
		Errors:      make(map[string]error),
	}
	for _, dc := range datacenters {
		for _, c := range dc.Clusters {
			for _, h := range c.Hosts {
				f.hosts[h.Name] = &h
			}
		}
	}
	return f
}

// WithHosts creates a fake holding hosts in a single datacenter and cluster.
func WithHosts(hosts ...cluster.Host) *FakeControlPlane {
	return NewFakeControlPlane(NewDatacenter("dc1", NewCluster("cluster1", hosts...)))
}

// Script queues states GetHost reports for host, one per call.
func (f *FakeControlPlane) Script(host string, states ...cluster.HostState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[host] = append(f.scripts[host], states...)
}

// SetState changes the current state of host.
func (f *FakeControlPlane) SetState(host string, state cluster.HostState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.hosts[host]; ok {
		h.State = state
		h.RawState = state.String()
	}
}

// State returns the current state of host.
func (f *FakeControlPlane) State(host string) cluster.HostState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hosts[host].State
}

// Calls returns the recorded calls as "op:host" in order.
func (f *FakeControlPlane) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts calls of op for host.
func (f *FakeControlPlane) CallCount(op, host string) int {
	want := op + ":" + host
	n := 0
	for _, c := range f.Calls() {
		if c == want {
			n++
		}
	}
	return n
}

// Requests returns the activate/deactivate calls in order.
func (f *FakeControlPlane) Requests() []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, "activate:") || strings.HasPrefix(c, "deactivate:") {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeControlPlane) err(op, host string) error {
	if err, ok := f.Errors[op+":"+host]; ok {
		return err
	}
	return f.Errors[op]
}

// ListDatacenters implements cluster.ControlPlane.
func (f *FakeControlPlane) ListDatacenters(context.Context) ([]cluster.Datacenter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("listDatacenters", ""); err != nil {
		return nil, err
	}
	out := make([]cluster.Datacenter, 0, len(f.datacenters))
	for _, dc := range f.datacenters {
		out = append(out, cluster.Datacenter{Name: dc.Name, Status: dc.Status})
	}
	return out, nil
}

// ListClusters implements cluster.ControlPlane.
func (f *FakeControlPlane) ListClusters(_ context.Context, datacenter string) ([]cluster.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("listClusters", datacenter); err != nil {
		return nil, err
	}
	for _, dc := range f.datacenters {
		if dc.Name != datacenter {
			continue
		}
		out := make([]cluster.Cluster, 0, len(dc.Clusters))
		for _, c := range dc.Clusters {
			out = append(out, cluster.Cluster{Name: c.Name, Status: c.Status})
		}
		return out, nil
	}
	return nil, nil
}

// ListHosts implements cluster.ControlPlane. Hosts carry their current state.
func (f *FakeControlPlane) ListHosts(_ context.Context, clusterName string) ([]cluster.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("listHosts", clusterName); err != nil {
		return nil, err
	}
	var out []cluster.Host
	for _, dc := range f.datacenters {
		for _, c := range dc.Clusters {
			if c.Name != clusterName {
				continue
			}
			for _, h := range c.Hosts {
				out = append(out, *f.hosts[h.Name])
			}
		}
	}
	return out, nil
}

// GetHost implements cluster.ControlPlane.
func (f *FakeControlPlane) GetHost(_ context.Context, name string) (cluster.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get:"+name)
	if err := f.err("get", name); err != nil {
		return cluster.Host{}, err
	}
	h, ok := f.hosts[name]
	if !ok {
		return cluster.Host{}, fmt.Errorf("%w: %s", cluster.ErrHostNotFound, name)
	}
	if queue := f.scripts[name]; len(queue) > 0 {
		h.State = queue[0]
		h.RawState = queue[0].String()
		f.scripts[name] = queue[1:]
	}
	return *h, nil
}

// Activate implements cluster.ControlPlane.
func (f *FakeControlPlane) Activate(_ context.Context, host cluster.Host) error {
	return f.toggle("activate", host.Name, cluster.StateUp)
}

// Deactivate implements cluster.ControlPlane.
func (f *FakeControlPlane) Deactivate(_ context.Context, host cluster.Host) error {
	return f.toggle("deactivate", host.Name, cluster.StateMaintenance)
}

func (f *FakeControlPlane) toggle(op, name string, target cluster.HostState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+name)
	if err := f.err(op, name); err != nil {
		return err
	}
	h, ok := f.hosts[name]
	if !ok {
		return fmt.Errorf("%w: %s", cluster.ErrHostNotFound, name)
	}
	if f.Stuck[name] {
		return nil
	}
	intermediate := h.State
	if target == cluster.StateMaintenance {
		intermediate = cluster.StatePreparingForMaintenance
	}
	for range f.Transitions {
		f.scripts[name] = append(f.scripts[name], intermediate)
	}
	f.scripts[name] = append(f.scripts[name], target)
	h.State = target
	h.RawState = target.String()
	return nil
}

// Close implements cluster.ControlPlane.
func (f *FakeControlPlane) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
