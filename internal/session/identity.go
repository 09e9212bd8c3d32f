package session

import "strings"

// Identity decides who authored a turn. The persisted Role wins; the string
// heuristics only apply to legacy turns stored without one.
type Identity struct {
	AgentEmail string
	RoleWords  []string
	// StaffDomains are email domains (without "@") that belong to hotel staff.
	StaffDomains []string
}

// DefaultIdentity returns the identity shim with the stock role words.
func DefaultIdentity(agentEmail string) Identity {
	return Identity{
		AgentEmail: agentEmail,
		RoleWords:  []string{"assistant", "concierge", "bot"},
	}
}

// IsAgent reports whether the turn was written by the automated agent.
func (id Identity) IsAgent(t Turn, persona *Persona) bool {
	switch t.Role {
	case RoleAgent:
		return true
	case RoleGuest, RoleStaff:
		return false
	}

	email := strings.ToLower(strings.TrimSpace(t.AuthorEmail))
	if email != "" && strings.EqualFold(email, strings.TrimSpace(id.AgentEmail)) {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(t.AuthorName))
	if name == "" {
		return false
	}
	for _, word := range id.RoleWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(name, word) {
			return true
		}
	}
	if persona != nil && !persona.IsZero() && strings.EqualFold(name, strings.TrimSpace(persona.DisplayName)) {
		return true
	}
	return false
}

// IsStaff reports whether the turn was written by a human staff member.
func (id Identity) IsStaff(t Turn, persona *Persona) bool {
	switch t.Role {
	case RoleStaff:
		return true
	case RoleAgent, RoleGuest:
		return false
	}
	if id.IsAgent(t, persona) {
		return false
	}
	email := strings.ToLower(strings.TrimSpace(t.AuthorEmail))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range id.StaffDomains {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(d), "@"), domain) {
			return true
		}
	}
	return false
}

// AgentFunc binds the identity to a persona for callers that only need a predicate.
func (id Identity) AgentFunc(persona *Persona) func(Turn) bool {
	return func(t Turn) bool { return id.IsAgent(t, persona) }
}
