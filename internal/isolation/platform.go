package isolation

import (
	"context"
	"time"
)

// Registration is one registered helper.
type Registration struct {
	ID      string    `json:"id"`
	Addr    string    `json:"addr"`
	Created time.Time `json:"created"`
}

// Platform is everything the controller needs from the host environment.
type Platform interface {
	// Isolated reports whether the current session runs in the isolated,
	// multi-thread capable context.
	Isolated(ctx context.Context) bool
	// Register registers the intercepting helper.
	Register(ctx context.Context) error
	// Controlled reports whether the helper already controls the session.
	Controlled() bool
	// ControlChanged is closed when the helper gains control.
	ControlChanged() <-chan struct{}
	Registrations(ctx context.Context) ([]Registration, error)
	Unregister(ctx context.Context, reg Registration) error
	// Reload forces a full session reload.
	Reload()
}
