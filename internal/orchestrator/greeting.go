package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/wolfman30/hotel-concierge-platform/internal/session"
)

var digitRun = regexp.MustCompile(`\d+`)

// ExtractTopic pulls a reservation reference out of free-text case metadata:
// a run of 8 to 14 digits, else the first token of 6+ letters or digits that
// contains a digit.
func ExtractTopic(meta string) string {
	for _, run := range digitRun.FindAllString(meta, -1) {
		if len(run) >= 8 && len(run) <= 14 {
			return run
		}
	}
	tokens := strings.FieldsFunc(meta, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if len([]rune(tok)) < 6 {
			continue
		}
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			return tok
		}
	}
	return ""
}

type greetingCopy struct {
	hello      string
	intro      string
	introHotel string
	topic      string
	ask        string
}

var greetings = map[string]greetingCopy{
	"en": {"Hi", "I'm %s.", "I'm %s from %s.", "I see this is about reservation %s.", "How can I help you today?"},
	"es": {"Hola", "Soy %s.", "Soy %s, de %s.", "Veo que se trata de la reserva %s.", "¿En qué puedo ayudarte hoy?"},
	"pt": {"Olá", "Sou %s.", "Sou %s, do %s.", "Vejo que é sobre a reserva %s.", "Como posso ajudar hoje?"},
	"fr": {"Bonjour", "Je suis %s.", "Je suis %s, de %s.", "Je vois qu'il s'agit de la réservation %s.", "Comment puis-je vous aider ?"},
	"it": {"Ciao", "Sono %s.", "Sono %s di %s.", "Vedo che si tratta della prenotazione %s.", "Come posso aiutarti oggi?"},
	"de": {"Hallo", "Ich bin %s.", "Ich bin %s von %s.", "Es geht um die Reservierung %s.", "Wie kann ich helfen?"},
}

// ComposeGreeting builds the opening message in the persona's language.
func ComposeGreeting(persona session.Persona, firstName, hotelName, topic string) string {
	c, ok := greetings[session.NormalizeLanguage(persona.Language)]
	if !ok {
		c = greetings[session.DefaultLanguage]
	}

	var b strings.Builder
	b.WriteString(c.hello)
	if firstName = strings.TrimSpace(firstName); firstName != "" {
		b.WriteString(" ")
		b.WriteString(firstName)
	}
	b.WriteString("! ")
	if hotelName = strings.TrimSpace(hotelName); hotelName != "" {
		fmt.Fprintf(&b, c.introHotel, persona.DisplayName, hotelName)
	} else {
		fmt.Fprintf(&b, c.intro, persona.DisplayName)
	}
	if topic = strings.TrimSpace(topic); topic != "" {
		b.WriteString(" ")
		fmt.Fprintf(&b, c.topic, topic)
	}
	b.WriteString(" ")
	b.WriteString(c.ask)
	return b.String()
}
