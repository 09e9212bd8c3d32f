package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/wolfman30/hotel-concierge-platform/internal/http/middleware"
	"github.com/wolfman30/hotel-concierge-platform/internal/orchestrator"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/internal/store"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// SessionService is the slice of the orchestrator the HTTP API drives.
type SessionService interface {
	OpenSession(ctx context.Context, sess session.Session) (*session.Session, error)
	Receive(ctx context.Context, sessionID string, turn session.Turn) (session.Turn, error)
	Scheduled(sessionID string) map[string]time.Time
}

// SessionReader loads a session with its turns.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
}

// SessionHandler serves the HTTP fallback for guests whose widget cannot hold
// a websocket, plus the staff read endpoints.
type SessionHandler struct {
	service SessionService
	reader  SessionReader
	logger  *logging.Logger
}

func NewSessionHandler(service SessionService, reader SessionReader, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{service: service, reader: reader, logger: logger}
}

// OpenSessionRequest is the body of POST /api/sessions.
type OpenSessionRequest struct {
	ID         string `json:"id,omitempty"`
	HotelID    string `json:"hotel_id"`
	Language   string `json:"language,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestEmail string `json:"guest_email,omitempty"`
	Topic      string `json:"topic,omitempty"`
}

// PostMessageRequest is the body of POST /api/sessions/{sessionID}/messages.
type PostMessageRequest struct {
	Text        string `json:"text"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
	Internal    bool   `json:"internal,omitempty"`
}

// SessionResponse is the wire form of a session.
type SessionResponse struct {
	ID         string           `json:"id"`
	HotelID    string           `json:"hotel_id"`
	Language   string           `json:"language"`
	GuestName  string           `json:"guest_name,omitempty"`
	GuestEmail string           `json:"guest_email,omitempty"`
	Topic      string           `json:"topic,omitempty"`
	Status     string           `json:"status"`
	Persona    *session.Persona `json:"persona,omitempty"`
	Turns      []session.Turn   `json:"turns"`
}

func toSessionResponse(sess *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:         sess.ID,
		HotelID:    sess.HotelID,
		Language:   sess.Language,
		GuestName:  sess.GuestName,
		GuestEmail: sess.GuestEmail,
		Topic:      sess.Topic,
		Status:     sess.Status,
		Persona:    sess.Persona,
		Turns:      sess.Turns,
	}
	if resp.Turns == nil {
		resp.Turns = []session.Turn{}
	}
	return resp
}

// OpenSession handles POST /api/sessions.
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.HotelID) == "" {
		http.Error(w, "hotel_id required", http.StatusBadRequest)
		return
	}
	sess, err := h.service.OpenSession(r.Context(), session.Session{
		ID:         strings.TrimSpace(req.ID),
		HotelID:    strings.TrimSpace(req.HotelID),
		Language:   req.Language,
		GuestName:  strings.TrimSpace(req.GuestName),
		GuestEmail: strings.TrimSpace(req.GuestEmail),
		Topic:      req.Topic,
	})
	if err != nil {
		h.fail(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// PostMessage handles POST /api/sessions/{sessionID}/messages. Requests
// carrying a staff token are recorded as staff turns.
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req PostMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}

	turn := session.Turn{
		Role:        session.RoleGuest,
		AuthorName:  strings.TrimSpace(req.AuthorName),
		AuthorEmail: strings.TrimSpace(req.AuthorEmail),
		Text:        req.Text,
	}
	if claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context()); ok {
		turn.Role = session.RoleStaff
		turn.AuthorName = claims.Name
		turn.AuthorEmail = claims.Email
		turn.Internal = req.Internal
	} else if req.Internal {
		http.Error(w, "internal notes require staff authentication", http.StatusForbidden)
		return
	}

	saved, err := h.service.Receive(r.Context(), sessionID, turn)
	if err != nil {
		h.fail(w, "post message", err)
		return
	}
	writeJSON(w, http.StatusAccepted, saved)
}

// GetSession handles GET /api/sessions/{sessionID} for staff.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadForStaff(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// GetSchedule handles GET /api/sessions/{sessionID}/schedule: the pending
// debounce, greeting, follow-up and close timers.
func (h *SessionHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadForStaff(w, r)
	if !ok {
		return
	}
	timers := map[string]string{}
	for kind, at := range h.service.Scheduled(sess.ID) {
		timers[kind] = at.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
		"timers":     timers,
	})
}

func (h *SessionHandler) loadForStaff(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "staff authentication required", http.StatusUnauthorized)
		return nil, false
	}
	sess, err := h.reader.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, "get session", err)
		return nil, false
	}
	if !httpmiddleware.CanManageHotel(claims, sess.HotelID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, orchestrator.ErrClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		h.logger.Error("handlers: "+op+" failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
