package rollout

import (
	"slices"

	"github.com/imamik/hvroll/internal/cluster"
)

// Plan returns hosts ordered by ascending active VM count, so the hosts that
// are cheapest to drain go first. Hosts with equal counts keep their
// discovery order. The input is not modified.
func Plan(hosts []cluster.Host) []cluster.Host {
	plan := slices.Clone(hosts)
	slices.SortStableFunc(plan, func(a, b cluster.Host) int {
		return a.ActiveVMs - b.ActiveVMs
	})
	return plan
}
