// Package intent labels guest and agent turns with the few intents the reply
// orchestrator branches on.
package intent

import (
	"strings"
	"unicode"

	"github.com/wolfman30/hotel-concierge-platform/internal/session"
)

// normalize lower-cases text, turns punctuation into spaces and pads the
// result so phrases can be matched on word boundaries.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// Match returns the first phrase of set found in text.
func Match(text string, set PatternSet) (string, bool) {
	norm := normalize(text)
	if strings.TrimSpace(norm) == "" {
		return "", false
	}
	for _, phrase := range set {
		p := normalize(phrase)
		if strings.TrimSpace(p) == "" {
			continue
		}
		if strings.Contains(norm, p) {
			return phrase, true
		}
	}
	return "", false
}

// Matches reports whether text contains any phrase of set.
func Matches(text string, set PatternSet) bool {
	_, ok := Match(text, set)
	return ok
}

func IsAffirmative(text string) bool  { return Matches(text, Affirmative) }
func IsCloseIntent(text string) bool  { return Matches(text, CloseIntent) }
func IsWaitingText(text string) bool  { return Matches(text, WaitSignal) }
func IsAckOfWait(text string) bool    { return Matches(text, WaitAck) }
func IsStrongBook(text string) bool   { return Matches(text, StrongBook) }
func IsStrongCancel(text string) bool { return Matches(text, StrongCancel) }

// ContainsWaitPhrase reports whether an agent reply tells the guest to wait.
func ContainsWaitPhrase(reply string) bool { return Matches(reply, AgentWaitPhrase) }

var salutationFiller = []string{"there", "all", "everyone", "team", "again"}

// IsSalutationOnly reports whether text is nothing but a greeting.
func IsSalutationOnly(text string) bool {
	norm := normalize(text)
	if strings.TrimSpace(norm) == "" {
		return false
	}
	found := false
	for _, phrase := range Salutation {
		p := normalize(phrase)
		for strings.Contains(norm, p) {
			norm = strings.Replace(norm, p, " ", 1)
			found = true
		}
	}
	if !found {
		return false
	}
	for _, word := range strings.Fields(norm) {
		filler := false
		for _, f := range salutationFiller {
			if word == f {
				filler = true
				break
			}
		}
		if !filler {
			return false
		}
	}
	return true
}

// LastAgentTurnMatches inspects only the most recent agent turn and reports
// whether it matches set. Older agent turns are never consulted, so a
// confirmation question followed by any other agent remark no longer counts.
func LastAgentTurnMatches(turns []session.Turn, isAgent func(session.Turn) bool, set PatternSet) bool {
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Internal || !isAgent(t) {
			continue
		}
		return Matches(t.Text, set)
	}
	return false
}

// Flags are the per-turn decisions derived from the conversation.
type Flags struct {
	ConfirmedProceed bool
	ConfirmedCancel  bool
	IsCloseIntent    bool
	IsWaitingText    bool
	IsAckOfWait      bool
	IsSalutationOnly bool
}

// Classify derives the flags for an inbound guest turn. turns is the
// conversation before text was sent.
func Classify(turns []session.Turn, isAgent func(session.Turn) bool, text string) Flags {
	affirmative := IsAffirmative(text)
	return Flags{
		ConfirmedProceed: (affirmative && LastAgentTurnMatches(turns, isAgent, AskedBookingConfirmation)) || IsStrongBook(text),
		ConfirmedCancel:  (affirmative && LastAgentTurnMatches(turns, isAgent, AskedCancelConfirmation)) || IsStrongCancel(text),
		IsCloseIntent:    IsCloseIntent(text),
		IsWaitingText:    IsWaitingText(text),
		IsAckOfWait:      IsAckOfWait(text),
		IsSalutationOnly: IsSalutationOnly(text),
	}
}
