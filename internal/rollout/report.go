package rollout

import (
	"fmt"
	"time"
)

// OutcomeKind classifies what happened to a host.
type OutcomeKind int

const (
	NoUpdatesAvailable OutcomeKind = iota
	Updated
	Failed
	Skipped
)

func (k OutcomeKind) String() string {
	switch k {
	case NoUpdatesAvailable:
		return "no-updates"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the recorded result for one host.
type Outcome struct {
	Host      string        `json:"host"`
	ActiveVMs int           `json:"activeVMs"`
	Kind      OutcomeKind   `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	LastState string        `json:"lastState,omitempty"`
	Duration  time.Duration `json:"duration"`
	// NeedsAttention marks hosts left outside service (typically still in
	// maintenance) that an operator must recover by hand.
	NeedsAttention bool `json:"needsAttention,omitempty"`
}

// countsAsFailure reports whether the outcome advances the failure counter.
// A host without updates whose reactivation failed still counts.
func (o Outcome) countsAsFailure() bool {
	return o.Kind == Failed || o.NeedsAttention
}

// Report accumulates outcomes for one rollout. Outcomes are only appended.
type Report struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Outcomes []Outcome `json:"outcomes"`
	Failures int       `json:"failures"`
	Aborted  bool      `json:"aborted"`
}

func newReport(now time.Time) *Report {
	return &Report{Started: now}
}

func (r *Report) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.countsAsFailure() {
		r.Failures++
	}
}

// Count returns the number of outcomes of kind.
func (r *Report) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Outcome returns the recorded outcome for host.
func (r *Report) Outcome(host string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Host == host {
			return o, true
		}
	}
	return Outcome{}, false
}

// NeedAttention returns the hosts an operator has to look at.
func (r *Report) NeedAttention() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.NeedsAttention {
			out = append(out, o)
		}
	}
	return out
}

// Skip records host as not processed.
func (r *Report) Skip(host string, activeVMs int, lastState, reason string) {
	r.record(Outcome{
		Host:      host,
		ActiveVMs: activeVMs,
		Kind:      Skipped,
		Reason:    reason,
		LastState: lastState,
	})
}
