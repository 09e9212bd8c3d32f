package orchestrator

import (
	"context"
	"sync"
	"time"
)

type taskKind string

const (
	kindDebounce taskKind = "debounce"
	kindGreeting taskKind = "greeting"
	kindFollowUp taskKind = "follow_up"
	kindClose    taskKind = "close"
)

type slotKey struct {
	sessionID string
	kind      taskKind
}

type task struct {
	id     uint64
	at     time.Time
	timer  *time.Timer
	cancel context.CancelFunc
}

// taskSlots holds at most one scheduled task per session and kind. Scheduling
// into an occupied slot cancels the previous task. A task leaves its slot the
// moment it fires, so cancelling a slot never interrupts work already running.
type taskSlots struct {
	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	seq     uint64
	slots   map[slotKey]*task
	running sync.WaitGroup
	closed  bool
	observe func(kind taskKind, event string)
}

func newTaskSlots(observe func(kind taskKind, event string)) *taskSlots {
	base, stop := context.WithCancel(context.Background())
	if observe == nil {
		observe = func(taskKind, string) {}
	}
	return &taskSlots{
		base:    base,
		stop:    stop,
		slots:   make(map[slotKey]*task),
		observe: observe,
	}
}

// schedule arms fn to run after delay, replacing any task in the same slot.
// It reports whether a previous task was superseded.
func (s *taskSlots) schedule(sessionID string, kind taskKind, delay time.Duration, fn func(ctx context.Context)) bool {
	if delay < 0 {
		delay = 0
	}
	key := slotKey{sessionID: sessionID, kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	superseded := false
	if prev, ok := s.slots[key]; ok {
		prev.timer.Stop()
		prev.cancel()
		superseded = true
		s.observe(kind, "superseded")
	}

	s.seq++
	id := s.seq
	ctx, cancel := context.WithCancel(s.base)
	t := &task{id: id, at: time.Now().Add(delay), cancel: cancel}
	t.timer = time.AfterFunc(delay, func() {
		if !s.claim(key, id) {
			cancel()
			return
		}
		defer s.running.Done()
		defer cancel()
		s.observe(kind, "fired")
		fn(ctx)
	})
	s.slots[key] = t
	s.observe(kind, "armed")
	return superseded
}

// claim removes the task from its slot if it is still the current one.
func (s *taskSlots) claim(key slotKey, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[key]
	if !ok || t.id != id || s.closed {
		return false
	}
	delete(s.slots, key)
	s.running.Add(1)
	return true
}

// cancel drops the pending task in a slot and reports whether one existed.
func (s *taskSlots) cancel(sessionID string, kind taskKind) bool {
	key := slotKey{sessionID: sessionID, kind: kind}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	t.cancel()
	delete(s.slots, key)
	s.observe(kind, "cancelled")
	return true
}

// cancelSession drops every pending task of a session.
func (s *taskSlots) cancelSession(sessionID string) {
	for _, kind := range []taskKind{kindDebounce, kindGreeting, kindFollowUp, kindClose} {
		s.cancel(sessionID, kind)
	}
}

func (s *taskSlots) pending(sessionID string, kind taskKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[slotKey{sessionID: sessionID, kind: kind}]
	return ok
}

// dueAt returns when the pending task in a slot fires.
func (s *taskSlots) dueAt(sessionID string, kind taskKind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[slotKey{sessionID: sessionID, kind: kind}]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

// shutdown cancels all pending tasks and the context of running ones, then
// waits for running tasks until ctx ends.
func (s *taskSlots) shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for key, t := range s.slots {
		t.timer.Stop()
		t.cancel()
		delete(s.slots, key)
	}
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
