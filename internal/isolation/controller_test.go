package isolation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWait = 8 * time.Second

type harness struct {
	platform *fakePlatform
	store    *flagstore.Store
	clock    *fakeClock
	sched    *Scheduler
	logs     *logRecorder
	ctrl     *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		platform: newFakePlatform(),
		store:    flagstore.New(nil, nil),
		clock:    newFakeClock(),
		logs:     &logRecorder{},
	}
	h.sched = NewScheduler(h.clock)
	t.Cleanup(h.sched.Stop)
	h.ctrl = NewController(h.platform, h.store, h.sched, Options{Wait: testWait, Logf: h.logs.Logf})
	return h
}

func (h *harness) pending() bool {
	return h.store.Has(flagstore.Session, flagstore.KeyCOIPending)
}

func waitReload(t *testing.T, p *fakePlatform) {
	t.Helper()
	select {
	case <-p.reloadCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a reload")
	}
}

func TestOnLoadIsolatedClearsPending(t *testing.T) {
	h := newHarness(t)
	h.platform.isolated = true
	require.NoError(t, h.store.Set(flagstore.Session, flagstore.KeyCOIPending, "1"))

	h.ctrl.OnLoad(context.Background())

	assert.Equal(t, Active, h.ctrl.State())
	assert.False(t, h.pending())
	assert.Zero(t, h.platform.Registered())
	assert.Zero(t, h.platform.Reloads())
}

func TestOnLoadRegistersAndReloadsWhenControlled(t *testing.T) {
	h := newHarness(t)
	h.platform.controlled = true

	h.ctrl.OnLoad(context.Background())

	assert.Equal(t, 1, h.platform.Registered())
	assert.Equal(t, 1, h.platform.Reloads())
	assert.Equal(t, Active, h.ctrl.State())
	assert.True(t, h.pending())
	assert.True(t, h.store.Has(flagstore.Session, flagstore.KeyCOIReloaded))
	start, ok := h.store.Get(flagstore.Session, flagstore.KeyCOIStart)
	require.True(t, ok)
	assert.NotEmpty(t, start)
}

func TestOnLoadWaitsForControlBeforeReload(t *testing.T) {
	h := newHarness(t)

	h.ctrl.OnLoad(context.Background())
	assert.Equal(t, WaitingForControl, h.ctrl.State())
	assert.Zero(t, h.platform.Reloads())

	h.platform.grantControl()
	waitReload(t, h.platform)
	assert.Equal(t, Active, h.ctrl.State())
}

func TestOnLoadHandoffExpiresWithoutLateReload(t *testing.T) {
	h := newHarness(t)

	h.ctrl.OnLoad(context.Background())
	require.Equal(t, WaitingForControl, h.ctrl.State())
	h.clock.Advance(testWait + time.Second)

	assert.Equal(t, Failed, h.ctrl.State())
	assert.Contains(t, h.logs.Lines(), "Multi-core still off. Close other sessions or run reset-helper, then reload.")
	h.sched.Wait()

	// Control arriving after the window must not reload on behalf of OnLoad.
	h.platform.grantControl()
	h.sched.Wait()
	assert.Zero(t, h.platform.Reloads())
}

func TestManualEnableAfterExpiredHandoffReloadsOnce(t *testing.T) {
	h := newHarness(t)

	h.ctrl.OnLoad(context.Background())
	h.clock.Advance(testWait + time.Second)
	require.Equal(t, Failed, h.ctrl.State())

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Enable(context.Background()) }()
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	h.platform.grantControl()

	require.NoError(t, <-errCh)
	h.sched.Wait()
	assert.Equal(t, 1, h.platform.Reloads())
	assert.Equal(t, Active, h.ctrl.State())
}

func TestEnableSupersedesPendingHandoff(t *testing.T) {
	h := newHarness(t)

	h.ctrl.OnLoad(context.Background())
	require.Equal(t, WaitingForControl, h.ctrl.State())

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Enable(context.Background()) }()
	// The OnLoad handoff and deferred check timers plus the Enable wait.
	require.Eventually(t, func() bool { return h.clock.Pending() == 2 }, 2*time.Second, 5*time.Millisecond)
	h.platform.grantControl()

	require.NoError(t, <-errCh)
	h.sched.Cancel(taskDeferredCheck)
	h.sched.Wait()
	assert.Equal(t, 1, h.platform.Reloads())
}

func TestOnLoadAttemptsOncePerSession(t *testing.T) {
	h := newHarness(t)
	h.platform.controlled = true
	h.ctrl.OnLoad(context.Background())

	// The next session in the same process is still unisolated.
	next := NewController(h.platform, h.store, h.sched, Options{Wait: testWait, Logf: h.logs.Logf})
	next.OnLoad(context.Background())

	assert.Equal(t, 1, h.platform.Registered())
	assert.Equal(t, Unknown, next.State())
}

func TestOnLoadRegistrationFailure(t *testing.T) {
	h := newHarness(t)
	h.platform.registerErr = errors.New("listen: address in use")

	h.ctrl.OnLoad(context.Background())

	assert.Equal(t, Failed, h.ctrl.State())
	assert.False(t, h.pending())
	assert.Contains(t, h.logs.Lines(), "Helper registration failed; multi-core unavailable for this session.")
	assert.Zero(t, h.platform.Reloads())
}

func TestDeferredCheckReportsStuckActivation(t *testing.T) {
	h := newHarness(t)
	h.ctrl.OnLoad(context.Background())
	require.True(t, h.pending())

	h.clock.Advance(testWait)
	assert.True(t, h.pending(), "check must not fire before the wait window plus slack")

	h.clock.Advance(250 * time.Millisecond)
	assert.False(t, h.pending())
	assert.Equal(t, Failed, h.ctrl.State())
	assert.Contains(t, h.logs.Lines(), "Multi-core still off. Close other sessions or run reset-helper, then reload.")
	assert.Equal(t, 1, h.platform.Registered(), "stuck check never retries")
}

func TestDeferredCheckNoopWhenIsolated(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(flagstore.Session, flagstore.KeyCOIPending, "1"))
	require.NoError(t, h.store.Set(flagstore.Session, flagstore.KeyCOIStart, "1"))
	h.platform.isolated = true

	h.ctrl.DeferredCheck(context.Background())

	assert.False(t, h.pending())
	assert.Empty(t, h.logs.Lines())
}

func TestDeferredCheckWithinWindowKeepsPending(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(flagstore.Session, flagstore.KeyCOIPending, "1"))
	require.NoError(t, h.store.Set(flagstore.Session, flagstore.KeyCOIStart, "0"))

	h.ctrl.DeferredCheck(context.Background())
	assert.True(t, h.pending(), "missing start timestamp keeps the record")
	assert.Empty(t, h.logs.Lines())
}

func TestEnableTimesOutAndReenablesTrigger(t *testing.T) {
	h := newHarness(t)

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Enable(context.Background()) }()

	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, h.ctrl.Trigger().Enabled())
	h.clock.Advance(testWait)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrControlTimeout)
	case <-time.After(2 * time.Second):
		t.Fatalf("Enable did not return")
	}
	assert.True(t, h.ctrl.Trigger().Enabled())
	assert.False(t, h.pending())
	assert.Equal(t, Failed, h.ctrl.State())
	assert.Contains(t, h.logs.Lines(), "Helper ready timed out. Try reset-helper.")
}

func TestEnableReloadsOnceControlled(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(flagstore.Session, flagstore.KeyCOIReloaded, "1"))

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Enable(context.Background()) }()
	require.Eventually(t, func() bool { return h.clock.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	h.platform.grantControl()

	require.NoError(t, <-errCh)
	waitReload(t, h.platform)
	assert.True(t, h.pending())
	assert.False(t, h.store.Has(flagstore.Session, flagstore.KeyCOIReloaded))
	assert.True(t, h.ctrl.Trigger().Enabled())
	assert.Contains(t, h.logs.Lines(), "Enabling multi-core...")
}

func TestEnableRejectsConcurrentActivation(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.ctrl.Trigger().Acquire())
	defer h.ctrl.Trigger().Release()

	assert.ErrorIs(t, h.ctrl.Enable(context.Background()), ErrInFlight)
	assert.Zero(t, h.platform.Registered())
}

func TestEnableRegistrationFailure(t *testing.T) {
	h := newHarness(t)
	h.platform.registerErr = errors.New("boom")

	require.Error(t, h.ctrl.Enable(context.Background()))
	assert.True(t, h.ctrl.Trigger().Enabled())
	assert.False(t, h.pending())
	assert.Equal(t, Failed, h.ctrl.State())
	assert.Contains(t, h.logs.Lines(), "Helper unavailable; multi-core disabled.")
}

func TestEnableWhenAlreadyIsolated(t *testing.T) {
	h := newHarness(t)
	h.platform.isolated = true

	require.NoError(t, h.ctrl.Enable(context.Background()))
	assert.Zero(t, h.platform.Registered())
	assert.Equal(t, Active, h.ctrl.State())
}

func TestResetWithoutRegistrations(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Reset(context.Background()))
	assert.Contains(t, h.logs.Lines(), "No helper registrations found.")
	assert.Zero(t, h.platform.Reloads())
}

func TestResetUnregistersAndReloads(t *testing.T) {
	h := newHarness(t)
	h.ctrl.OnLoad(context.Background())
	require.True(t, h.pending())

	require.NoError(t, h.ctrl.Reset(context.Background()))
	waitReload(t, h.platform)
	assert.Len(t, h.platform.unregistered, 1)
	assert.False(t, h.pending())
	assert.Equal(t, Unknown, h.ctrl.State())

	// The deferred check was cancelled with the reset.
	h.clock.Advance(testWait + time.Second)
	assert.NotContains(t, h.logs.Lines(), "Multi-core still off. Close other sessions or run reset-helper, then reload.")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting-for-control", WaitingForControl.String())
	assert.Equal(t, "state(42)", State(42).String())
}
