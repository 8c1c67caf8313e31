package cluster

import "strings"

// HostState is the lifecycle state of a hypervisor host as reported by the
// control plane, reduced to the states the rollout knows how to drive.
type HostState int

const (
	// StateOther covers every state outside the transition table (down,
	// error, installing, non-responsive, ...).
	StateOther HostState = iota
	StateUp
	StatePreparingForMaintenance
	StateMaintenance
	StateRebooting
)

func (s HostState) String() string {
	switch s {
	case StateUp:
		return "up"
	case StatePreparingForMaintenance:
		return "preparing_for_maintenance"
	case StateMaintenance:
		return "maintenance"
	case StateRebooting:
		return "reboot"
	default:
		return "other"
	}
}

// MarshalText encodes the state by name.
func (s HostState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseHostState maps a control-plane status string to a HostState.
// Unknown values map to StateOther.
func ParseHostState(status string) HostState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "up":
		return StateUp
	case "preparing_for_maintenance":
		return StatePreparingForMaintenance
	case "maintenance":
		return StateMaintenance
	case "reboot", "rebooting":
		return StateRebooting
	default:
		return StateOther
	}
}

// Host is a read-only view of a hypervisor host. It is never mutated
// locally; a fresh copy is fetched whenever its state matters.
type Host struct {
	ID         string
	Name       string
	Address    string
	State      HostState
	RawState   string // status string exactly as the control plane reported it
	OSType     string
	OSVersion  string
	ActiveVMs  int
	Cluster    string
	Datacenter string
}

// StateName returns the control plane's own name for the host state,
// falling back to the normalized one.
func (h Host) StateName() string {
	if h.RawState != "" {
		return h.RawState
	}
	return h.State.String()
}

// Cluster groups the hosts that share a cluster.
type Cluster struct {
	Name   string
	Status string
	Hosts  []Host
}

// Datacenter groups clusters.
type Datacenter struct {
	Name     string
	Status   string
	Clusters []Cluster
}

// HostCount returns the number of hosts across all clusters.
func (d Datacenter) HostCount() int {
	n := 0
	for _, c := range d.Clusters {
		n += len(c.Hosts)
	}
	return n
}
