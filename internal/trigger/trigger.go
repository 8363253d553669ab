// Package trigger guards user actions so a second activation cannot start
// while the first is still in flight.
package trigger

import "sync"

// Trigger is an enable flag for one user-facing control.
type Trigger struct {
	mu       sync.Mutex
	name     string
	inFlight bool
	onChange func(name string, enabled bool)
}

func New(name string) *Trigger {
	return &Trigger{name: name}
}

func (t *Trigger) Name() string { return t.name }

// OnChange registers a callback for enable/disable transitions.
func (t *Trigger) OnChange(fn func(name string, enabled bool)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Enabled reports whether the control can be activated.
func (t *Trigger) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.inFlight
}

// Acquire disables the trigger. It returns false when an activation is
// already in flight.
func (t *Trigger) Acquire() bool {
	t.mu.Lock()
	if t.inFlight {
		t.mu.Unlock()
		return false
	}
	t.inFlight = true
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(t.name, false)
	}
	return true
}

// Release re-enables the trigger.
func (t *Trigger) Release() {
	t.mu.Lock()
	if !t.inFlight {
		t.mu.Unlock()
		return
	}
	t.inFlight = false
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(t.name, true)
	}
}

// Run executes fn with the trigger disabled and always re-enables it, even
// when fn panics. It reports whether fn ran.
func (t *Trigger) Run(fn func()) bool {
	if !t.Acquire() {
		return false
	}
	defer t.Release()
	fn()
	return true
}
