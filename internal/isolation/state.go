// Package isolation upgrades a session from single-threaded to
// multi-threaded execution by registering a header-injecting helper and
// reloading once the helper controls the session.
package isolation

import "fmt"

// State is the activation state of the current session.
type State int

const (
	Unknown State = iota
	HelperRegistering
	PendingReload
	WaitingForControl
	Active
	Failed
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case HelperRegistering:
		return "helper-registering"
	case PendingReload:
		return "pending-reload"
	case WaitingForControl:
		return "waiting-for-control"
	case Active:
		return "active"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
