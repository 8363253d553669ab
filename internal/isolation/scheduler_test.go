package isolation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAfterRunsOnDeadline(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(clock)
	defer s.Stop()

	var ran atomic.Int32
	task := s.After("check", time.Second, func(context.Context) { ran.Add(1) })
	assert.Equal(t, "check", task.Name())

	clock.Advance(999 * time.Millisecond)
	assert.Zero(t, ran.Load())
	clock.Advance(time.Millisecond)
	<-task.Done()
	assert.Equal(t, int32(1), ran.Load())
}

func TestSchedulerAfterReplacesSameName(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(clock)
	defer s.Stop()

	var first, second atomic.Int32
	old := s.After("check", time.Second, func(context.Context) { first.Add(1) })
	s.After("check", 2*time.Second, func(context.Context) { second.Add(1) })
	<-old.Done()

	clock.Advance(3 * time.Second)
	assert.Zero(t, first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestSchedulerCancel(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(clock)
	defer s.Stop()

	var ran atomic.Int32
	task := s.After("check", time.Second, func(context.Context) { ran.Add(1) })
	assert.True(t, s.Cancel("check"))
	assert.False(t, s.Cancel("check"))
	<-task.Done()

	clock.Advance(time.Minute)
	assert.Zero(t, ran.Load())
}

func TestSchedulerStopCancelsRunningTasks(t *testing.T) {
	s := NewScheduler(newFakeClock())
	started := make(chan struct{})
	task := s.Go("wait", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	s.Stop()

	select {
	case <-task.Done():
	default:
		t.Fatalf("task still running after Stop")
	}

	late := s.Go("late", func(context.Context) { t.Errorf("task ran after Stop") })
	<-late.Done()
}

func TestSchedulerWithSystemClock(t *testing.T) {
	s := NewScheduler(nil)
	defer s.Stop()

	task := s.After("soon", 5*time.Millisecond, func(context.Context) {})
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		require.Fail(t, "timer never fired")
	}
	s.Wait()
}
