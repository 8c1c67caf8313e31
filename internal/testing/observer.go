package testing

import (
	"fmt"
	"sync"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/rollout"
)

// RecordingObserver records rollout progress as short event strings such
// as "start:H1 1/3", "phase:H1 drain" and "done:H1 updated".
type RecordingObserver struct {
	mu     sync.Mutex
	events []string
}

var _ rollout.Observer = (*RecordingObserver)(nil)

func (o *RecordingObserver) HostStarted(host cluster.Host, index, total int) {
	o.add(fmt.Sprintf("start:%s %d/%d", host.Name, index, total))
}

func (o *RecordingObserver) PhaseStarted(host cluster.Host, phase string) {
	o.add(fmt.Sprintf("phase:%s %s", host.Name, phase))
}

func (o *RecordingObserver) HostFinished(out rollout.Outcome) {
	o.add(fmt.Sprintf("done:%s %s", out.Host, out.Kind))
}

func (o *RecordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}
