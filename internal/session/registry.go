package session

import (
	"sync"
	"time"

	"github.com/wolfman30/hotel-concierge-platform/internal/pacing"
)

// state is the ephemeral, process-local record for one session.
type state struct {
	mu      sync.Mutex
	phase   Phase
	locked  bool
	pending bool
	persona *Persona
	typing  pacing.TypingState
}

// Registry owns the per-session state objects. It is safe for concurrent use;
// each session's state is guarded by its own mutex so sessions never contend.
type Registry struct {
	mu      sync.Mutex
	states  map[string]*state
	greeted map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		states:  make(map[string]*state),
		greeted: make(map[string]struct{}),
	}
}

func (r *Registry) get(sessionID string) *state {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[sessionID]
	if !ok {
		st = &state{phase: PhaseIdle}
		r.states[sessionID] = st
	}
	return st
}

// Phase returns the current phase of the session.
func (r *Registry) Phase(sessionID string) Phase {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.phase
}

// Transition moves the session to a new phase, validating against the table.
func (r *Registry) Transition(sessionID string, to Phase) error {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.transition(to)
}

func (st *state) transition(to Phase) error {
	if !CanTransition(st.phase, to) {
		return ErrInvalidTransition{From: st.phase, To: to}
	}
	st.phase = to
	return nil
}

// MarkPending records that a payload is waiting for a generation pass. While a
// pass holds the lock the phase stays Locked and Unlock picks the payload up.
func (r *Registry) MarkPending(sessionID string) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pending = true
	if st.phase != PhaseLocked {
		st.phase = PhaseDebouncing
	}
}

// HoldForTyping moves a debouncing session into the typing-pause wait.
func (r *Registry) HoldForTyping(sessionID string) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.phase == PhaseDebouncing || st.phase == PhaseWaitingForTypingPause {
		st.phase = PhaseWaitingForTypingPause
	}
}

// ClearPending drops the pending marker, returning the session to Idle unless locked.
func (r *Registry) ClearPending(sessionID string) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pending = false
	if st.phase == PhaseDebouncing || st.phase == PhaseWaitingForTypingPause {
		st.phase = PhaseIdle
	}
}

// TryLock acquires the generation lock. It returns false when another pass holds it.
func (r *Registry) TryLock(sessionID string) bool {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.locked {
		return false
	}
	st.locked = true
	st.pending = false
	st.phase = PhaseLocked
	return true
}

// Unlock releases the generation lock.
func (r *Registry) Unlock(sessionID string) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.locked = false
	if st.pending {
		st.phase = PhaseDebouncing
	} else {
		st.phase = PhaseIdle
	}
}

// Locked reports whether a generation pass is in flight.
func (r *Registry) Locked(sessionID string) bool {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.locked
}

// MarkGreeted sets the greet-once flag and reports whether this call set it.
// The flag is never cleared for the lifetime of the process.
func (r *Registry) MarkGreeted(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.greeted[sessionID]; ok {
		return false
	}
	r.greeted[sessionID] = struct{}{}
	return true
}

// Greeted reports whether the session was already greeted.
func (r *Registry) Greeted(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.greeted[sessionID]
	return ok
}

// Persona returns the cached persona.
func (r *Registry) Persona(sessionID string) (Persona, bool) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.persona == nil {
		return Persona{}, false
	}
	return *st.persona, true
}

// EnsurePersona returns the cached persona, assigning one with assign when
// the cache is empty. A cached persona is never replaced.
func (r *Registry) EnsurePersona(sessionID string, assign func() Persona) (Persona, bool) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.persona != nil {
		return *st.persona, false
	}
	p := assign()
	st.persona = &p
	return p, true
}

// SetTyping records a typing start/stop signal from the guest.
func (r *Registry) SetTyping(sessionID string, active bool, now time.Time) {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if active {
		st.typing = st.typing.Start()
	} else {
		st.typing = st.typing.Stop(now)
	}
}

// Typing returns the guest's typing status.
func (r *Registry) Typing(sessionID string) pacing.TypingState {
	st := r.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.typing
}

// Forget drops the ephemeral state of a closed session. The greeted flag survives.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, sessionID)
}
