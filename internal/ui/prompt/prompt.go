// Package prompt asks the operator for confirmation on the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/imamik/hvroll/internal/rollout"
)

// ErrNotInteractive is returned when no terminal is attached to ask on.
var ErrNotInteractive = errors.New("not an interactive terminal")

// Terminal asks yes/no questions with a huh form.
type Terminal struct {
	interactive func() bool
	ask         func(ctx context.Context, question string, value *bool) error
}

var _ rollout.Confirmer = (*Terminal)(nil)

// NewTerminal returns a Terminal on the process's stdin/stdout. Setting
// ACCESSIBLE in the environment switches huh to its screen-reader mode.
func NewTerminal() *Terminal {
	accessible := os.Getenv("ACCESSIBLE") != ""
	return &Terminal{
		interactive: IsInteractive,
		ask: func(ctx context.Context, question string, value *bool) error {
			return confirmForm(question, value).WithAccessible(accessible).RunWithContext(ctx)
		},
	}
}

// Confirm asks question and reports the answer. Escaping the form counts as
// a refusal.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if !t.interactive() {
		return false, ErrNotInteractive
	}
	proceed := false
	if err := t.ask(ctx, question, &proceed); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return proceed, nil
}

func confirmForm(question string, value *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Description("Aborting leaves the remaining hosts untouched.").
				Affirmative("Continue").
				Negative("Abort").
				Value(value),
		).Title("Failure threshold exceeded"),
	)
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Confirmer picks the confirmation policy: always continue when assumeYes,
// ask on a terminal, and refuse otherwise.
func Confirmer(assumeYes bool) rollout.Confirmer {
	switch {
	case assumeYes:
		return rollout.Accept{}
	case IsInteractive():
		return NewTerminal()
	default:
		return rollout.Decline{}
	}
}
