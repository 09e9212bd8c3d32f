package session

import (
	"hash/fnv"
	"strings"
)

// DefaultLanguage is used when a session's language is unknown or unsupported.
const DefaultLanguage = "en"

var defaultPersonaNames = map[string][]string{
	"en": {"Emma", "Olivia", "James", "Lucas"},
	"es": {"Lucía", "Sofía", "Mateo", "Diego"},
	"pt": {"Beatriz", "Mariana", "João", "Pedro"},
	"fr": {"Camille", "Léa", "Hugo", "Louis"},
	"it": {"Giulia", "Chiara", "Marco", "Luca"},
	"de": {"Anna", "Lena", "Felix", "Jonas"},
}

// NormalizeLanguage reduces a locale such as "es-MX" to its base code.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// ChoosePersona picks a display name for the session from the pool for its
// language. The choice is stable for a given session id.
func ChoosePersona(sessionID, language string, pool map[string][]string) Persona {
	lang := NormalizeLanguage(language)
	names := pool[lang]
	if len(names) == 0 {
		names = defaultPersonaNames[lang]
	}
	if len(names) == 0 {
		lang = DefaultLanguage
		names = pool[lang]
		if len(names) == 0 {
			names = defaultPersonaNames[lang]
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return Persona{
		DisplayName: names[int(h.Sum32()%uint32(len(names)))],
		Language:    lang,
	}
}
