package isolation

import (
	"context"
	"sync"
	"time"
)

// Timer is a pending AfterFunc callback.
type Timer interface {
	Stop() bool
}

// Clock supplies time to the controller and scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Task is one named background job.
type Task struct {
	name string
	done chan struct{}
}

func (t *Task) Name() string { return t.name }

// Done is closed when the task has finished or was cancelled before it ran.
func (t *Task) Done() <-chan struct{} { return t.done }

// Scheduler runs named background tasks. Stop cancels pending timers and
// the context handed to running tasks, then waits for them.
type Scheduler struct {
	clock  Clock
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
	timers  map[string]scheduled
}

type scheduled struct {
	timer Timer
	task  *Task
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{clock: clock, ctx: ctx, cancel: cancel, timers: make(map[string]scheduled)}
}

func (s *Scheduler) Clock() Clock { return s.clock }

// Go starts fn now on its own goroutine.
func (s *Scheduler) Go(name string, fn func(ctx context.Context)) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(task.done)
		return task
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(task.done)
		fn(s.ctx)
	}()
	return task
}

// After runs fn once after d. Scheduling a name again replaces the pending
// task of that name.
func (s *Scheduler) After(name string, d time.Duration, fn func(ctx context.Context)) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		close(task.done)
		return task
	}
	if prev, ok := s.timers[name]; ok && prev.timer.Stop() {
		close(prev.task.done)
		s.wg.Done()
	}

	s.wg.Add(1)
	timer := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if cur, ok := s.timers[name]; ok && cur.task == task {
			delete(s.timers, name)
		}
		s.mu.Unlock()
		defer s.wg.Done()
		defer close(task.done)
		fn(s.ctx)
	})
	s.timers[name] = scheduled{timer: timer, task: task}
	return task
}

// Cancel stops a pending named task. It reports whether one was stopped.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[name]
	if !ok {
		return false
	}
	delete(s.timers, name)
	if !cur.timer.Stop() {
		return false
	}
	close(cur.task.done)
	s.wg.Done()
	return true
}

// Wait blocks until every started task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop cancels pending timers and running tasks and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.stopped = true
	for name, cur := range s.timers {
		if cur.timer.Stop() {
			close(cur.task.done)
			s.wg.Done()
		}
		delete(s.timers, name)
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
