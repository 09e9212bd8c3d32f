package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/hotel-concierge-platform/internal/push"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/internal/store"
)

var (
	_ push.EventSink = (*Orchestrator)(nil)
	_ Store          = (*store.PostgresStore)(nil)
	_ Emitter        = (*push.Hub)(nil)
)

// HandleClientEvent routes websocket client events into the scheduler.
func (o *Orchestrator) HandleClientEvent(ctx context.Context, evt push.ClientEvent) error {
	switch evt.Type {
	case push.ClientJoin:
		return clientError(o.handleJoin(ctx, evt))
	case push.ClientNewSession:
		if strings.TrimSpace(evt.HotelID) == "" {
			return &push.UserError{Message: "hotel_id required"}
		}
		_, err := o.OpenSession(ctx, session.Session{
			ID:         evt.SessionID,
			HotelID:    evt.HotelID,
			Language:   evt.Language,
			GuestName:  evt.GuestName,
			GuestEmail: evt.GuestEmail,
			Topic:      evt.Topic,
		})
		return clientError(err)
	case push.ClientTyping:
		o.HandleTyping(evt.SessionID, true)
		return nil
	case push.ClientStopTyping:
		o.HandleTyping(evt.SessionID, false)
		return nil
	case push.ClientSendMessage:
		if strings.TrimSpace(evt.Text) == "" {
			return &push.UserError{Message: "text required"}
		}
		turn := session.Turn{Role: session.RoleGuest, Text: evt.Text, AuthorName: evt.GuestName, AuthorEmail: evt.GuestEmail}
		if evt.Staff != nil {
			turn.Role = session.RoleStaff
			turn.AuthorName = evt.Staff.Name
			turn.AuthorEmail = evt.Staff.Email
		}
		_, err := o.Receive(ctx, evt.SessionID, turn)
		return clientError(err)
	default:
		return &push.UserError{Message: "unsupported event"}
	}
}

// handleJoin treats a guest joining a room as the session opening. Staff
// watching a session never arm the greeting.
func (o *Orchestrator) handleJoin(ctx context.Context, evt push.ClientEvent) error {
	if evt.Staff != nil || o.isClosed() {
		return nil
	}
	sess, err := o.store.GetSession(ctx, evt.SessionID)
	if err != nil {
		return err
	}
	if sess.Closed() {
		return nil
	}
	isAgent := o.identity(o.hotelConfig(ctx, sess.HotelID)).AgentFunc(o.personaHint(sess.ID, sess))
	if hasAgentTurn(sess.Turns, isAgent) {
		return nil
	}
	o.HandleSessionOpened(ctx, sess.ID, sess.HotelID)
	return nil
}

func clientError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrClosed):
		return &push.UserError{Message: "service shutting down"}
	case errors.Is(err, store.ErrSessionNotFound):
		return &push.UserError{Message: "unknown session"}
	}
	return err
}
