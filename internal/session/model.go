// Package session holds the conversation data model and the per-session
// ephemeral state the reply orchestrator works against.
package session

import (
	"strings"
	"time"
)

// Role is the persisted author role of a turn.
type Role string

const (
	RoleUnknown Role = ""
	RoleAgent   Role = "agent"
	RoleGuest   Role = "guest"
	RoleStaff   Role = "staff"
)

// Status values for a session.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Turn is one message within a session. Turns are immutable once appended.
type Turn struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        Role      `json:"role,omitempty"`
	AuthorName  string    `json:"author_name,omitempty"`
	AuthorEmail string    `json:"author_email,omitempty"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	// Internal turns are staff notes hidden from the guest and from the model.
	Internal bool `json:"internal,omitempty"`
}

// Persona is the display identity the automated side presents as.
type Persona struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
}

// IsZero reports whether no persona has been assigned.
func (p Persona) IsZero() bool {
	return strings.TrimSpace(p.DisplayName) == ""
}

// Session is one support conversation ("case").
type Session struct {
	ID         string
	HotelID    string
	Language   string
	GuestName  string
	GuestEmail string
	// Topic is free-text metadata supplied when the case was opened.
	Topic     string
	Status    string
	Persona   *Persona
	Turns     []Turn
	CreatedAt time.Time
}

// GuestFirstName returns the first token of the guest name, or "".
func (s *Session) GuestFirstName() string {
	if s == nil {
		return ""
	}
	fields := strings.Fields(s.GuestName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s != nil && s.Status == StatusClosed
}

// LastTurn returns the most recent turn, if any.
func (s *Session) LastTurn() (Turn, bool) {
	if s == nil || len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}
