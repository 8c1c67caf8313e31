package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/imamik/hvroll/internal/cluster"
	"github.com/imamik/hvroll/internal/rollout"
)

// Progress prints one line per host and phase as a rollout advances.
type Progress struct {
	mu sync.Mutex
	w  io.Writer
}

var _ rollout.Observer = (*Progress)(nil)

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

func (p *Progress) HostStarted(host cluster.Host, index, total int) {
	p.printf("%s\n", titleStyle.Render(fmt.Sprintf("[%d/%d] %s (%d VMs)", index, total, host.Name, host.ActiveVMs)))
}

func (p *Progress) PhaseStarted(_ cluster.Host, phase string) {
	p.printf("  %s %s\n", dimStyle.Render(spinner), phase)
}

func (p *Progress) HostFinished(o rollout.Outcome) {
	line := "  " + outcomeLabel(o)
	if o.Reason != "" {
		line += " " + dimStyle.Render(o.Reason)
	}
	p.printf("%s\n", line)
}

func (p *Progress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}
