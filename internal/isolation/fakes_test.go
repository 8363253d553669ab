package isolation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakePlatform struct {
	mu           sync.Mutex
	isolated     bool
	registerErr  error
	registered   int
	controlled   bool
	controlCh    chan struct{}
	regs         []Registration
	unregistered []Registration
	reloads      int
	reloadCh     chan struct{}
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{controlCh: make(chan struct{}), reloadCh: make(chan struct{}, 4)}
}

func (p *fakePlatform) Isolated(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isolated
}

func (p *fakePlatform) Register(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registerErr != nil {
		return p.registerErr
	}
	p.registered++
	p.regs = append(p.regs, Registration{ID: fmt.Sprintf("reg-%d", p.registered)})
	return nil
}

func (p *fakePlatform) Controlled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlled
}

func (p *fakePlatform) ControlChanged() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlCh
}

func (p *fakePlatform) grantControl() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.controlled {
		p.controlled = true
		close(p.controlCh)
	}
}

func (p *fakePlatform) Registrations(context.Context) ([]Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Registration(nil), p.regs...), nil
}

func (p *fakePlatform) Unregister(_ context.Context, reg Registration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unregistered = append(p.unregistered, reg)
	p.regs = nil
	return nil
}

func (p *fakePlatform) Reload() {
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.reloadCh <- struct{}{}
}

func (p *fakePlatform) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *fakePlatform) Registered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logRecorder) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
