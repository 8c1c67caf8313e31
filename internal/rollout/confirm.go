package rollout

import "context"

// Decline refuses every confirmation. It is the policy when no operator
// can be asked.
type Decline struct{}

// Confirm returns false.
func (Decline) Confirm(context.Context, string) (bool, error) {
	return false, nil
}

// Accept approves every confirmation.
type Accept struct{}

// Confirm returns true.
func (Accept) Confirm(context.Context, string) (bool, error) {
	return true, nil
}
