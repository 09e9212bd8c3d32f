package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/hotel-concierge-platform/internal/session"
)

func agentTurn(text string) session.Turn {
	return session.Turn{Role: session.RoleAgent, Text: text, Timestamp: time.Now()}
}

func guestTurn(text string) session.Turn {
	return session.Turn{Role: session.RoleGuest, Text: text, Timestamp: time.Now()}
}

var isAgent = session.DefaultIdentity("concierge@hotel.example").AgentFunc(nil)

func TestMatchesWordBoundaries(t *testing.T) {
	assert.True(t, IsAffirmative("Ok!"))
	assert.True(t, IsAffirmative("yes, please"))
	assert.False(t, IsAffirmative("I want booking info"), "ok must not match inside booking")
	assert.False(t, IsAffirmative("yesss"), "elongated words are not the phrase")
	assert.True(t, IsAffirmative("YES!!!"))
	assert.False(t, IsAffirmative(""))
	assert.True(t, IsAffirmative("Sí, claro"))
	assert.True(t, IsCloseIntent("That's all, thanks"))
	assert.True(t, IsAckOfWait("ok I'll wait"))
	assert.True(t, IsWaitingText("hold on a sec"))
	assert.True(t, ContainsWaitPhrase("Let me check availability for you."))
	assert.False(t, ContainsWaitPhrase("Your room is confirmed."))
}

func TestMatchReturnsFirstPhrase(t *testing.T) {
	phrase, ok := Match("Yes sure", Affirmative)
	assert.True(t, ok)
	assert.Equal(t, "yes", phrase)
}

func TestLastAgentTurnMatchesRecencyOnly(t *testing.T) {
	tests := []struct {
		name  string
		turns []session.Turn
		want  bool
	}{
		{"no agent turns", []session.Turn{guestTurn("hi")}, false},
		{"last agent turn asks", []session.Turn{guestTurn("3 nights please"), agentTurn("Should I proceed with booking?")}, true},
		{"guest turns after the question are skipped", []session.Turn{agentTurn("Should I proceed with booking?"), guestTurn("hmm"), guestTurn("one sec")}, true},
		{"older question is not consulted", []session.Turn{agentTurn("Should I proceed with booking?"), agentTurn("Breakfast is included.")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastAgentTurnMatches(tt.turns, isAgent, AskedBookingConfirmation))
		})
	}
}

func TestLastAgentTurnSkipsInternalNotes(t *testing.T) {
	turns := []session.Turn{
		agentTurn("Should I cancel the reservation?"),
		{Role: session.RoleAgent, Text: "internal: guest is VIP", Internal: true},
	}
	assert.True(t, LastAgentTurnMatches(turns, isAgent, AskedCancelConfirmation))
}

func TestClassifyConfirmedProceed(t *testing.T) {
	turns := []session.Turn{agentTurn("Should I proceed with booking?")}
	flags := Classify(turns, isAgent, "yes")
	assert.True(t, flags.ConfirmedProceed)
	assert.False(t, flags.ConfirmedCancel)
}

func TestClassifyPlainAgentTurnDoesNotConfirm(t *testing.T) {
	turns := []session.Turn{agentTurn("We have rooms available from $120 per night.")}
	flags := Classify(turns, isAgent, "yes")
	assert.False(t, flags.ConfirmedProceed)
}

func TestClassifyStrongIntentIgnoresContext(t *testing.T) {
	flags := Classify(nil, isAgent, "Please go ahead and book it")
	assert.True(t, flags.ConfirmedProceed)

	flags = Classify(nil, isAgent, "Cancela mi reserva por favor")
	assert.True(t, flags.ConfirmedCancel)
}

func TestClassifyCancelConfirmation(t *testing.T) {
	turns := []session.Turn{agentTurn("Are you sure you want to cancel reservation HX123?")}
	flags := Classify(turns, isAgent, "sí")
	assert.True(t, flags.ConfirmedCancel)
	assert.False(t, flags.ConfirmedProceed)
}

func TestClassifyDirectFlags(t *testing.T) {
	flags := Classify(nil, isAgent, "Thanks, bye!")
	assert.True(t, flags.IsCloseIntent)

	flags = Classify(nil, isAgent, "no rush, take your time")
	assert.True(t, flags.IsAckOfWait)

	flags = Classify(nil, isAgent, "un momento por favor")
	assert.True(t, flags.IsWaitingText)
}

func TestIsSalutationOnly(t *testing.T) {
	assert.True(t, IsSalutationOnly("hi"))
	assert.True(t, IsSalutationOnly("Hello there!"))
	assert.True(t, IsSalutationOnly("Buenos días"))
	assert.False(t, IsSalutationOnly("hi, I need a room for friday"))
	assert.False(t, IsSalutationOnly("thanks"))
	assert.False(t, IsSalutationOnly(""))
}
