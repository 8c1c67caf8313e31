package testing

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProber is a testify mock of rollout.Prober.
type MockProber struct {
	mock.Mock
}

// Probe records the call and returns the configured reachability.
func (m *MockProber) Probe(ctx context.Context, address string) bool {
	args := m.Called(ctx, address)
	return args.Bool(0)
}

// MockConfirmer is a testify mock of rollout.Confirmer.
type MockConfirmer struct {
	mock.Mock
}

// Confirm records the call and returns the configured answer.
func (m *MockConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	args := m.Called(ctx, question)
	return args.Bool(0), args.Error(1)
}

// ReachableProber answers every probe with true.
func ReachableProber() *MockProber {
	p := &MockProber{}
	p.On("Probe", mock.Anything, mock.Anything).Return(true)
	return p
}
