package testing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/imamik/hvroll/internal/rollout"
)

// CommandResult scripts the result of one remote command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// FakeDialer hands out FakeSessions and records every command run, per
// address. Commands without a scripted result exit 0.
type FakeDialer struct {
	mu       sync.Mutex
	results  map[string]map[string]CommandResult
	commands map[string][]string
	dialed   []string
	closed   map[string]int

	// DialErr maps an address to the error Dial returns for it.
	DialErr map[string]error
}

// NewFakeDialer creates an empty dialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		results:  make(map[string]map[string]CommandResult),
		commands: make(map[string][]string),
		closed:   make(map[string]int),
		DialErr:  make(map[string]error),
	}
}

// On scripts the result of command on address.
func (d *FakeDialer) On(address, command string, res CommandResult) *FakeDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.results[address] == nil {
		d.results[address] = make(map[string]CommandResult)
	}
	d.results[address][command] = res
	return d
}

// Commands returns the commands run on address in order.
func (d *FakeDialer) Commands(address string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands[address]...)
}

// Dialed returns the dialed addresses in order.
func (d *FakeDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// Closed returns how many sessions to address were closed.
func (d *FakeDialer) Closed(address string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed[address]
}

// Dial implements rollout.Dialer.
func (d *FakeDialer) Dial(_ context.Context, address string) (rollout.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, address)
	if err := d.DialErr[address]; err != nil {
		return nil, err
	}
	return &FakeSession{dialer: d, address: address}, nil
}

// FakeSession runs scripted commands for one address.
type FakeSession struct {
	dialer  *FakeDialer
	address string
}

// Run implements rollout.Session.
func (s *FakeSession) Run(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	s.dialer.mu.Lock()
	s.dialer.commands[s.address] = append(s.dialer.commands[s.address], command)
	res := s.dialer.results[s.address][command]
	s.dialer.mu.Unlock()

	if res.Stdout != "" {
		_, _ = fmt.Fprint(stdout, res.Stdout)
	}
	if res.Stderr != "" {
		_, _ = fmt.Fprint(stderr, res.Stderr)
	}
	return res.ExitCode, res.Err
}

// Close implements rollout.Session.
func (s *FakeSession) Close() error {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	s.dialer.closed[s.address]++
	return nil
}
