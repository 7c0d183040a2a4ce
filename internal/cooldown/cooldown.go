// Package cooldown tracks when each email was last sent a code so that
// resends can be spaced out.
package cooldown

import (
	"context"
	"time"
)

// Tracker is keyed by normalized email.
type Tracker interface {
	// Touch starts a fresh cooldown window for key.
	Touch(ctx context.Context, key string) error
	// Reserve claims the next issuance for key. When the window is still
	// open it returns the remaining wait and false.
	Reserve(ctx context.Context, key string) (time.Duration, bool, error)
	// Release ends the window for key, undoing a reservation whose
	// issuance failed.
	Release(ctx context.Context, key string) error
}

// Disabled never throttles.
type Disabled struct{}

func (Disabled) Touch(context.Context, string) error { return nil }

func (Disabled) Reserve(context.Context, string) (time.Duration, bool, error) {
	return 0, true, nil
}

func (Disabled) Release(context.Context, string) error { return nil }
