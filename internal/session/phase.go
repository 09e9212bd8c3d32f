package session

import "fmt"

// Phase is the reply-generation state of one session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDebouncing
	PhaseWaitingForTypingPause
	PhaseLocked
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseWaitingForTypingPause:
		return "waiting_for_typing_pause"
	case PhaseLocked:
		return "locked"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// transitions lists the phases reachable from each phase. Debouncing re-enters
// itself when a newer payload supersedes the pending one or a lock retry is armed.
var transitions = map[Phase][]Phase{
	PhaseIdle:                  {PhaseDebouncing, PhaseLocked},
	PhaseDebouncing:            {PhaseDebouncing, PhaseWaitingForTypingPause, PhaseLocked, PhaseIdle},
	PhaseWaitingForTypingPause: {PhaseWaitingForTypingPause, PhaseDebouncing, PhaseLocked, PhaseIdle},
	PhaseLocked:                {PhaseIdle, PhaseDebouncing},
}

// CanTransition reports whether moving from one phase to another is allowed.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned for transitions outside the table.
type ErrInvalidTransition struct {
	From Phase
	To   Phase
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session: invalid transition from %s to %s", e.From, e.To)
}
