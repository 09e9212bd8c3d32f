package assistant

import (
	"fmt"
	"strings"
	"time"
)

// Directives the orchestrator adds to the system prompt for special turns.
const (
	DirectiveClose    = "The guest is wrapping up the conversation. Reply with one short, warm farewell and do not ask further questions."
	DirectiveWaiting  = "The guest asked you to wait. Acknowledge briefly and do not ask new questions."
	DirectiveFollowUp = "You told the guest you would check something. Deliver the results now, concisely, without repeating that you are checking."
)

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"fr": "French",
	"it": "Italian",
	"de": "German",
}

func systemPrompt(in Input) string {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := strings.TrimSpace(in.Persona.DisplayName)
	if name == "" {
		name = "the concierge"
	}
	hotel := strings.TrimSpace(in.HotelName)
	if hotel == "" {
		hotel = "the hotel"
	}
	lang := languageNames[strings.ToLower(in.Call.Language)]
	if lang == "" {
		lang = "the guest's language"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a concierge for %s, chatting with a guest in a live support conversation.\n", name, hotel)
	fmt.Fprintf(&b, "Today is %s. Reply in %s, in two or three short sentences, like a person typing in a chat.\n", now.Format("Monday, 2006-01-02"), lang)
	if guest := strings.TrimSpace(in.Call.GuestName); guest != "" {
		fmt.Fprintf(&b, "The guest's name is %s.\n", guest)
	}
	b.WriteString("Rules:\n")
	b.WriteString("- Use get_pricing for any price or availability question; never invent prices.\n")
	b.WriteString("- If dates are blocked, offer the suggested alternative window.\n")
	b.WriteString("- Before booking, summarise the stay and ask the guest to confirm. Only call create_reservation after they confirm, and ask for their first and last name if you do not have both.\n")
	b.WriteString("- Before cancelling, ask the guest to confirm the cancellation.\n")
	b.WriteString("- If a tool reports needs_confirmation, needs_full_name or needs_cancel_confirmation, ask the guest for exactly that.\n")
	b.WriteString("- Never mention tools, systems or that you are an AI model.\n")
	for _, d := range in.Directives {
		if d = strings.TrimSpace(d); d != "" {
			b.WriteString(d)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}
