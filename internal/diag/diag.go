// Package diag keeps the bounded, newest-first diagnostic feed shown in the workbench.
package diag

import (
	"fmt"
	"sync"
	"time"

	"github.com/mwiater/aletheia/internal/logging"
)

const DefaultCapacity = 120

// Feed is a fixed-capacity log. Oldest lines are dropped first.
type Feed struct {
	mu       sync.Mutex
	capacity int
	lines    []string
	now      func() time.Time
	notify   func()
}

func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{capacity: capacity, now: time.Now}
}

// SetClock replaces the timestamp source.
func (f *Feed) SetClock(now func() time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// OnAppend registers a callback fired after every new line.
func (f *Feed) OnAppend(fn func()) {
	f.mu.Lock()
	f.notify = fn
	f.mu.Unlock()
}

// Logf prepends a timestamped line and mirrors it to the log file.
func (f *Feed) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	f.mu.Lock()
	line := fmt.Sprintf("[%s] %s", f.now().Format("15:04:05"), msg)
	f.lines = append([]string{line}, f.lines...)
	if len(f.lines) > f.capacity {
		f.lines = f.lines[:f.capacity]
	}
	notify := f.notify
	f.mu.Unlock()

	logging.LogEvent("%s", msg)
	if notify != nil {
		notify()
	}
}

// Lines returns a copy of the feed, newest first.
func (f *Feed) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// Latest returns the newest line without its timestamp prefix.
func (f *Feed) Latest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		return ""
	}
	line := f.lines[0]
	if len(line) > 11 && line[0] == '[' {
		return line[11:]
	}
	return line
}
