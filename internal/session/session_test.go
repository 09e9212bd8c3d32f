package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityExplicitRoleWins(t *testing.T) {
	id := DefaultIdentity("concierge@hotel.example")
	persona := &Persona{DisplayName: "Emma", Language: "en"}

	assert.True(t, id.IsAgent(Turn{Role: RoleAgent, AuthorName: "Guest"}, persona))
	assert.False(t, id.IsAgent(Turn{Role: RoleGuest, AuthorName: "Emma"}, persona))
	assert.True(t, id.IsStaff(Turn{Role: RoleStaff}, persona))
	assert.False(t, id.IsStaff(Turn{Role: RoleAgent}, persona))
}

func TestIdentityLegacyHeuristics(t *testing.T) {
	id := DefaultIdentity("concierge@hotel.example")
	id.StaffDomains = []string{"@hotel.example", "frontdesk.example"}
	persona := &Persona{DisplayName: "Emma", Language: "en"}

	tests := []struct {
		name  string
		turn  Turn
		agent bool
		staff bool
	}{
		{"reserved agent email", Turn{AuthorEmail: "CONCIERGE@hotel.example"}, true, false},
		{"role word in name", Turn{AuthorName: "Virtual Assistant"}, true, false},
		{"persona name", Turn{AuthorName: "emma"}, true, false},
		{"guest", Turn{AuthorName: "Maria Lopez", AuthorEmail: "maria@mail.example"}, false, false},
		{"staff domain", Turn{AuthorName: "Carlos", AuthorEmail: "carlos@frontdesk.example"}, false, true},
		{"no author", Turn{}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.agent, id.IsAgent(tt.turn, persona))
			assert.Equal(t, tt.staff, id.IsStaff(tt.turn, persona))
		})
	}
}

func TestPhaseTable(t *testing.T) {
	assert.True(t, CanTransition(PhaseIdle, PhaseDebouncing))
	assert.True(t, CanTransition(PhaseDebouncing, PhaseDebouncing))
	assert.True(t, CanTransition(PhaseDebouncing, PhaseWaitingForTypingPause))
	assert.True(t, CanTransition(PhaseWaitingForTypingPause, PhaseLocked))
	assert.True(t, CanTransition(PhaseLocked, PhaseIdle))
	assert.False(t, CanTransition(PhaseLocked, PhaseLocked))
	assert.False(t, CanTransition(PhaseIdle, PhaseWaitingForTypingPause))

	r := NewRegistry()
	err := r.Transition("s1", PhaseWaitingForTypingPause)
	var invalid ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, PhaseIdle, invalid.From)
	require.NoError(t, r.Transition("s1", PhaseDebouncing))
	assert.Equal(t, "debouncing", r.Phase("s1").String())
}

func TestRegistryLockLifecycle(t *testing.T) {
	r := NewRegistry()

	r.MarkPending("s1")
	assert.Equal(t, PhaseDebouncing, r.Phase("s1"))
	r.HoldForTyping("s1")
	assert.Equal(t, PhaseWaitingForTypingPause, r.Phase("s1"))

	require.True(t, r.TryLock("s1"))
	assert.Equal(t, PhaseLocked, r.Phase("s1"))
	assert.False(t, r.TryLock("s1"), "second holder must be rejected")

	// A payload arriving mid-pass keeps the phase locked.
	r.MarkPending("s1")
	assert.Equal(t, PhaseLocked, r.Phase("s1"))

	r.Unlock("s1")
	assert.Equal(t, PhaseDebouncing, r.Phase("s1"))
	r.ClearPending("s1")
	assert.Equal(t, PhaseIdle, r.Phase("s1"))

	// Other sessions are independent.
	require.True(t, r.TryLock("s1"))
	assert.True(t, r.TryLock("s2"))
}

func TestRegistryTryLockConcurrent(t *testing.T) {
	r := NewRegistry()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryLock("s1") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestRegistryGreetOnce(t *testing.T) {
	r := NewRegistry()
	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.MarkGreeted("s1") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), firsts.Load())
	assert.True(t, r.Greeted("s1"))

	r.Forget("s1")
	assert.True(t, r.Greeted("s1"), "greeted flag survives Forget")
}

func TestRegistryPersonaNotReassigned(t *testing.T) {
	r := NewRegistry()
	calls := 0
	assign := func(name string) func() Persona {
		return func() Persona {
			calls++
			return Persona{DisplayName: name, Language: "en"}
		}
	}

	p, assigned := r.EnsurePersona("s1", assign("Emma"))
	assert.True(t, assigned)
	assert.Equal(t, "Emma", p.DisplayName)

	p, assigned = r.EnsurePersona("s1", assign("Lucía"))
	assert.False(t, assigned)
	assert.Equal(t, "Emma", p.DisplayName)
	assert.Equal(t, 1, calls)
}

func TestRegistryTyping(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.SetTyping("s1", true, now)
	assert.True(t, r.Typing("s1").Active)
	r.SetTyping("s1", false, now)
	st := r.Typing("s1")
	assert.False(t, st.Active)
	assert.Equal(t, now, st.StoppedAt)
}

func TestChoosePersona(t *testing.T) {
	pool := map[string][]string{"es": {"Lucía", "Sofía"}}

	p := ChoosePersona("case-1", "es-MX", pool)
	assert.Equal(t, "es", p.Language)
	assert.Contains(t, pool["es"], p.DisplayName)
	assert.Equal(t, p, ChoosePersona("case-1", "es", pool), "stable per session")

	p = ChoosePersona("case-1", "", nil)
	assert.Equal(t, "en", p.Language)
	assert.NotEmpty(t, p.DisplayName)

	p = ChoosePersona("case-1", "xx", nil)
	assert.Equal(t, "en", p.Language)
}

func TestSessionHelpers(t *testing.T) {
	s := &Session{GuestName: "  Maria  Lopez "}
	assert.Equal(t, "Maria", s.GuestFirstName())
	_, ok := s.LastTurn()
	assert.False(t, ok)
	s.Turns = append(s.Turns, Turn{Text: "hi"})
	last, ok := s.LastTurn()
	require.True(t, ok)
	assert.Equal(t, "hi", last.Text)
	assert.False(t, s.Closed())
	s.Status = StatusClosed
	assert.True(t, s.Closed())
}
