// Package push is the real-time channel between the platform and connected
// guest or staff clients. Connections join session rooms; the orchestrator
// emits events into those rooms.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// Server events.
const (
	EventTypingStart     = "typing-start"
	EventTypingStop      = "typing-stop"
	EventMessageReceived = "message-received"
	EventSessionClosed   = "session-closed"
	EventAIPaused        = "ai-paused"
	EventSessionCreated  = "session-created"
	EventError           = "error"
)

// Client events.
const (
	ClientJoin        = "join"
	ClientNewSession  = "new-session"
	ClientTyping      = "typing"
	ClientStopTyping  = "stop-typing"
	ClientSendMessage = "send-message"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 64 << 10
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type clientPayload struct {
	SessionID  string `json:"session_id"`
	HotelID    string `json:"hotel_id"`
	Text       string `json:"text"`
	Language   string `json:"language"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	Topic      string `json:"topic"`
	Token      string `json:"token"`
}

// ClientEvent is a decoded client frame handed to the EventSink.
type ClientEvent struct {
	Type       string
	ConnID     string
	SessionID  string
	HotelID    string
	Text       string
	Language   string
	GuestName  string
	GuestEmail string
	Topic      string
	// Staff is set when the connection joined with a valid staff token.
	Staff *StaffClaims
}

// EventSink receives client events other than join.
type EventSink interface {
	HandleClientEvent(ctx context.Context, evt ClientEvent) error
}

type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
	rooms   map[string]struct{}
	staff   *StaffClaims
}

func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks connections and their room memberships.
type Hub struct {
	upgrader    websocket.Upgrader
	sink        EventSink
	staffSecret string
	logger      *logging.Logger

	mu    sync.RWMutex
	rooms map[string]map[*conn]struct{}
	conns map[*conn]struct{}
}

// Option customizes a Hub.
type Option func(*Hub)

// WithStaffSecret enables staff identity on join.
func WithStaffSecret(secret string) Option {
	return func(h *Hub) { h.staffSecret = secret }
}

// WithAllowedOrigins restricts browser origins. Empty allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		}
	}
}

func NewHub(sink EventSink, logger *logging.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sink:   sink,
		logger: logger,
		rooms:  make(map[string]map[*conn]struct{}),
		conns:  make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetSink installs the client event sink; used when the sink is built after the hub.
func (h *Hub) SetSink(sink EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
}

// Emit sends an event to every connection in room. A room with no
// connections is not an error.
func (h *Hub) Emit(ctx context.Context, room, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = raw
	}
	frame, err := json.Marshal(Frame{Event: event, Room: room, Data: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	members := make([]*conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.write(frame); err != nil {
			h.logger.Debug("push: dropping connection after write failure", "conn_id", c.id, "room", room, "error", err)
			_ = c.ws.Close()
		}
	}
	return nil
}

// TypingStarted emits the typing indicator for a session room.
func (h *Hub) TypingStarted(ctx context.Context, room string) error {
	return h.Emit(ctx, room, EventTypingStart, map[string]string{"session_id": room})
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("push: websocket upgrade failed", "error", err)
		return
	}
	c := &conn{id: uuid.NewString(), ws: ws, rooms: make(map[string]struct{})}
	h.register(c)
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go h.keepAlive(ctx, c)

	if room := r.URL.Query().Get("session"); room != "" {
		h.handleFrame(ctx, c, Frame{Event: ClientJoin, Room: room})
	}
	h.readLoop(ctx, c)
}

func (h *Hub) keepAlive(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var frame Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("push: connection closed", "conn_id", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(ctx, c, frame)
	}
}

func (h *Hub) handleFrame(ctx context.Context, c *conn, frame Frame) {
	var p clientPayload
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			h.reply(c, EventError, map[string]string{"error": "invalid payload"})
			return
		}
	}
	if p.SessionID == "" {
		p.SessionID = frame.Room
	}

	switch frame.Event {
	case ClientJoin:
		if p.SessionID == "" {
			h.reply(c, EventError, map[string]string{"error": "session_id required"})
			return
		}
		if p.Token != "" {
			claims, err := ParseStaffToken(h.staffSecret, p.Token)
			if err != nil {
				h.logger.Warn("push: rejected staff token", "conn_id", c.id, "error", err)
				h.reply(c, EventError, map[string]string{"error": "invalid staff token"})
				return
			}
			c.staff = claims
		}
		h.join(c, p.SessionID)
	case ClientNewSession:
		if p.SessionID == "" {
			p.SessionID = uuid.NewString()
		}
		h.join(c, p.SessionID)
	case ClientTyping, ClientStopTyping, ClientSendMessage:
		if p.SessionID == "" {
			h.reply(c, EventError, map[string]string{"error": "session_id required"})
			return
		}
	default:
		h.reply(c, EventError, map[string]string{"error": "unknown event"})
		return
	}

	h.mu.RLock()
	sink := h.sink
	h.mu.RUnlock()
	if sink == nil {
		return
	}
	evt := ClientEvent{
		Type:       frame.Event,
		ConnID:     c.id,
		SessionID:  p.SessionID,
		HotelID:    p.HotelID,
		Text:       p.Text,
		Language:   p.Language,
		GuestName:  p.GuestName,
		GuestEmail: p.GuestEmail,
		Topic:      p.Topic,
		Staff:      c.staff,
	}
	if err := sink.HandleClientEvent(ctx, evt); err != nil {
		h.logger.Warn("push: client event failed", "event", frame.Event, "session_id", p.SessionID, "error", err)
		h.reply(c, EventError, map[string]string{"error": publicError(err)})
		return
	}
	if frame.Event == ClientNewSession {
		h.reply(c, EventSessionCreated, map[string]string{"session_id": p.SessionID})
	}
}

func (h *Hub) reply(c *conn, event string, payload any) {
	data, _ := json.Marshal(payload)
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return
	}
	_ = c.write(frame)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) join(c *conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.ws.Close()
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	}
}

// UserError marks an error whose message is safe to show the client.
type UserError struct{ Message string }

func (e *UserError) Error() string { return e.Message }

func publicError(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return "request failed"
}
