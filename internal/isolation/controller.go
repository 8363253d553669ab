package isolation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/logging"
	"github.com/mwiater/aletheia/internal/trigger"
)

const (
	// DefaultWait bounds the wait for helper control and delays the stuck check.
	DefaultWait = 8 * time.Second
	// deferredSlack is added to the wait window before the stuck check runs.
	deferredSlack = 250 * time.Millisecond

	taskReload        = "reload-on-control"
	taskDeferredCheck = "deferred-check"
)

var (
	// ErrInFlight is returned when a manual activation is already running.
	ErrInFlight = errors.New("multi-core activation already in progress")
	// ErrControlTimeout is returned when the helper never took control.
	ErrControlTimeout = errors.New("helper did not take control in time")
)

// Options configure a Controller.
type Options struct {
	Wait    time.Duration
	Logf    func(format string, args ...any)
	OnState func(State)
}

// Controller drives the activation state machine for one session.
type Controller struct {
	platform Platform
	store    *flagstore.Store
	sched    *Scheduler
	clock    Clock
	wait     time.Duration
	logf     func(format string, args ...any)
	onState  func(State)
	trigger  *trigger.Trigger

	mu    sync.Mutex
	state State
	// handoffGen identifies the current OnLoad wait for control; stopHandoff
	// wakes it. A nil stopHandoff means no wait is pending.
	handoffGen  uint64
	stopHandoff context.CancelFunc
}

func NewController(platform Platform, store *flagstore.Store, sched *Scheduler, opts Options) *Controller {
	c := &Controller{
		platform: platform,
		store:    store,
		sched:    sched,
		clock:    sched.Clock(),
		wait:     opts.Wait,
		logf:     opts.Logf,
		onState:  opts.OnState,
		trigger:  trigger.New("multicore"),
	}
	if c.wait <= 0 {
		c.wait = DefaultWait
	}
	if c.logf == nil {
		c.logf = logging.LogEvent
	}
	return c
}

// Trigger is the enable control for the manual activation.
func (c *Controller) Trigger() *trigger.Trigger { return c.trigger }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	logging.LogEvent("isolation state: %s", s)
	if fn != nil {
		fn(s)
	}
}

func (c *Controller) markPending() {
	_ = c.store.Set(flagstore.Session, flagstore.KeyCOIPending, "1")
	_ = c.store.Set(flagstore.Session, flagstore.KeyCOIStart, strconv.FormatInt(c.clock.Now().UnixMilli(), 10))
}

func (c *Controller) clearPending() {
	_ = c.store.Remove(flagstore.Session, flagstore.KeyCOIPending)
	_ = c.store.Remove(flagstore.Session, flagstore.KeyCOIStart)
}

func (c *Controller) pending() bool {
	value, ok := c.store.Get(flagstore.Session, flagstore.KeyCOIPending)
	return ok && value == "1"
}

// OnLoad runs at every session load. It schedules the deferred stuck check
// and makes at most one automatic activation attempt per process session.
func (c *Controller) OnLoad(ctx context.Context) {
	c.sched.After(taskDeferredCheck, c.wait+deferredSlack, c.DeferredCheck)

	if c.platform.Isolated(ctx) {
		c.clearPending()
		c.setState(Active)
		return
	}
	if c.store.Has(flagstore.Session, flagstore.KeyCOIReloaded) {
		return
	}
	_ = c.store.Set(flagstore.Session, flagstore.KeyCOIReloaded, "1")

	c.setState(HelperRegistering)
	if err := c.platform.Register(ctx); err != nil {
		logging.LogEvent("helper registration error: %v", err)
		c.logf("Helper registration failed; multi-core unavailable for this session.")
		c.setState(Failed)
		return
	}
	if c.pending() {
		return
	}
	c.markPending()
	c.setState(PendingReload)
	c.reloadOnControl()
}

// reloadOnControl reloads now when the helper already has control, otherwise
// as soon as it gains it within the wait window. An expired wait is left to
// DeferredCheck to report.
func (c *Controller) reloadOnControl() {
	c.setState(WaitingForControl)
	if c.platform.Controlled() {
		c.reload()
		return
	}
	gen, stopped := c.beginHandoff()
	changed := c.platform.ControlChanged()
	expired := make(chan struct{})
	timer := c.clock.AfterFunc(c.wait, func() { close(expired) })
	c.sched.Go(taskReload, func(ctx context.Context) {
		defer timer.Stop()
		select {
		case <-changed:
			if c.claimHandoff(gen) {
				c.reload()
			}
		case <-expired:
			if c.claimHandoff(gen) {
				logging.LogEvent("helper did not take control within %s", c.wait)
			}
		case <-stopped.Done():
		case <-ctx.Done():
			c.claimHandoff(gen)
		}
	})
}

func (c *Controller) beginHandoff() (uint64, context.Context) {
	ctx, stop := context.WithCancel(context.Background())
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopHandoff != nil {
		c.stopHandoff()
	}
	c.handoffGen++
	c.stopHandoff = stop
	return c.handoffGen, ctx
}

// claimHandoff ends the wait identified by gen. It reports false when that
// wait was already cancelled or replaced.
func (c *Controller) claimHandoff(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.handoffGen || c.stopHandoff == nil {
		return false
	}
	c.stopHandoff()
	c.stopHandoff = nil
	return true
}

// cancelHandoff abandons a pending OnLoad wait so it can no longer reload.
func (c *Controller) cancelHandoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopHandoff != nil {
		c.stopHandoff()
		c.stopHandoff = nil
	}
}

func (c *Controller) reload() {
	c.setState(Active)
	c.platform.Reload()
}

// Enable is the manual activation. The trigger stays disabled while it runs
// and is re-enabled on every return path.
func (c *Controller) Enable(ctx context.Context) error {
	if !c.trigger.Acquire() {
		return ErrInFlight
	}
	defer c.trigger.Release()
	c.cancelHandoff()

	if c.platform.Isolated(ctx) {
		c.clearPending()
		c.setState(Active)
		c.logf("Multi-core already enabled.")
		return nil
	}

	_ = c.store.Remove(flagstore.Session, flagstore.KeyCOIReloaded)
	c.setState(HelperRegistering)
	if err := c.platform.Register(ctx); err != nil {
		c.logf("Helper unavailable; multi-core disabled.")
		c.clearPending()
		c.setState(Failed)
		return err
	}
	c.markPending()
	c.setState(PendingReload)
	c.logf("Enabling multi-core...")

	if err := c.waitForControl(ctx); err != nil {
		if errors.Is(err, ErrControlTimeout) {
			c.logf("Helper ready timed out. Try reset-helper.")
		}
		c.clearPending()
		c.setState(Failed)
		return err
	}
	c.setState(WaitingForControl)
	c.reload()
	return nil
}

func (c *Controller) waitForControl(ctx context.Context) error {
	if c.platform.Controlled() {
		return nil
	}
	expired := make(chan struct{})
	timer := c.clock.AfterFunc(c.wait, func() { close(expired) })
	defer timer.Stop()

	select {
	case <-c.platform.ControlChanged():
		return nil
	case <-expired:
		return ErrControlTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeferredCheck reports a stuck activation once. It never retries.
func (c *Controller) DeferredCheck(ctx context.Context) {
	if c.platform.Isolated(ctx) {
		c.cancelHandoff()
		c.clearPending()
		return
	}
	if !c.pending() {
		return
	}
	raw, _ := c.store.Get(flagstore.Session, flagstore.KeyCOIStart)
	started, _ := strconv.ParseInt(raw, 10, 64)
	if started == 0 {
		return
	}
	if c.clock.Now().Sub(time.UnixMilli(started)) > c.wait {
		c.logf("Multi-core still off. Close other sessions or run reset-helper, then reload.")
		c.cancelHandoff()
		c.clearPending()
		c.setState(Failed)
	}
}

// Reset unregisters every helper registration and reloads. It abandons any
// in-flight activation.
func (c *Controller) Reset(ctx context.Context) error {
	regs, err := c.platform.Registrations(ctx)
	if err != nil {
		c.logf("Helper reset failed.")
		return err
	}
	if len(regs) == 0 {
		c.logf("No helper registrations found.")
		return nil
	}
	for _, reg := range regs {
		if err := c.platform.Unregister(ctx, reg); err != nil {
			c.logf("Helper reset failed.")
			return err
		}
	}
	c.sched.Cancel(taskDeferredCheck)
	c.cancelHandoff()
	c.clearPending()
	c.setState(Unknown)
	c.logf("Helper unregistered. Reloading...")
	c.platform.Reload()
	return nil
}
