package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

type recordingSink struct {
	mu     sync.Mutex
	events []ClientEvent
	err    error
}

func (s *recordingSink) HandleClientEvent(_ context.Context, evt ClientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *recordingSink) snapshot() []ClientEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ClientEvent(nil), s.events...)
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Event: event, Data: raw}))
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestHubJoinAndEmit(t *testing.T) {
	hub := NewHub(nil, logging.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	guest := dial(t, srv, "?session=s1")
	other := dial(t, srv, "")
	send(t, other, ClientJoin, map[string]string{"session_id": "s2"})
	require.Eventually(t, func() bool { return hub.RoomSize("s1") == 1 && hub.RoomSize("s2") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Emit(context.Background(), "s1", EventMessageReceived, map[string]string{"text": "hello"}))
	f := readFrame(t, guest)
	assert.Equal(t, EventMessageReceived, f.Event)
	assert.Equal(t, "s1", f.Room)
	assert.JSONEq(t, `{"text":"hello"}`, string(f.Data))

	require.NoError(t, hub.TypingStarted(context.Background(), "s2"))
	assert.Equal(t, EventTypingStart, readFrame(t, other).Event)

	assert.NoError(t, hub.Emit(context.Background(), "empty", EventTypingStop, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Emit(ctx, "s1", EventTypingStop, nil), context.Canceled)

	_ = guest.Close()
	require.Eventually(t, func() bool { return hub.RoomSize("s1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubDeliversClientEvents(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(sink, logging.Discard(), WithStaffSecret("sekret"))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	guest := dial(t, srv, "")
	send(t, guest, ClientNewSession, map[string]string{"hotel_id": "h1", "guest_name": "Ana Souza", "language": "es"})
	created := readFrame(t, guest)
	require.Equal(t, EventSessionCreated, created.Event)
	var ack map[string]string
	require.NoError(t, json.Unmarshal(created.Data, &ack))
	sessionID := ack["session_id"]
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, hub.RoomSize(sessionID))

	send(t, guest, ClientTyping, map[string]string{"session_id": sessionID})
	send(t, guest, ClientSendMessage, map[string]string{"session_id": sessionID, "text": "hola"})
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, time.Second, 10*time.Millisecond)

	token, err := IssueStaffToken("sekret", StaffClaims{Name: "Marco", Email: "marco@casaazul.mx", HotelID: "h1"}, time.Hour)
	require.NoError(t, err)
	staff := dial(t, srv, "")
	send(t, staff, ClientJoin, map[string]string{"session_id": sessionID, "token": token})
	send(t, staff, ClientSendMessage, map[string]string{"session_id": sessionID, "text": "Upgrade approved"})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 5 }, time.Second, 10*time.Millisecond)
	events := sink.snapshot()
	assert.Equal(t, ClientNewSession, events[0].Type)
	assert.Equal(t, "h1", events[0].HotelID)
	assert.Equal(t, ClientTyping, events[1].Type)
	assert.Equal(t, "hola", events[2].Text)
	assert.Nil(t, events[2].Staff)
	assert.Equal(t, ClientJoin, events[3].Type)
	require.NotNil(t, events[3].Staff)
	require.NotNil(t, events[4].Staff)
	assert.Equal(t, "Marco", events[4].Staff.Name)
}

func TestHubForwardsJoins(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(sink, logging.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dial(t, srv, "")
	send(t, ws, ClientJoin, map[string]string{"session_id": "s1"})
	dial(t, srv, "?session=s2")

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.RoomSize("s1"))
	assert.Equal(t, 1, hub.RoomSize("s2"))

	rooms := map[string]string{}
	for _, evt := range sink.snapshot() {
		rooms[evt.SessionID] = evt.Type
	}
	assert.Equal(t, map[string]string{"s1": ClientJoin, "s2": ClientJoin}, rooms)
}

func TestHubRejectsBadFrames(t *testing.T) {
	sink := &recordingSink{err: &UserError{Message: "session is closed"}}
	hub := NewHub(sink, logging.Discard(), WithStaffSecret("sekret"))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dial(t, srv, "")
	send(t, ws, ClientJoin, map[string]string{"session_id": "s1", "token": "garbage"})
	assert.Equal(t, EventError, readFrame(t, ws).Event)

	send(t, ws, "dance", map[string]string{"session_id": "s1"})
	assert.Equal(t, EventError, readFrame(t, ws).Event)

	send(t, ws, ClientSendMessage, map[string]string{"text": "no session"})
	assert.Equal(t, EventError, readFrame(t, ws).Event)

	send(t, ws, ClientSendMessage, map[string]string{"session_id": "s1", "text": "late"})
	f := readFrame(t, ws)
	assert.Equal(t, EventError, f.Event)
	assert.Contains(t, string(f.Data), "session is closed")
}

func TestStaffTokens(t *testing.T) {
	_, err := ParseStaffToken("", "x")
	assert.ErrorIs(t, err, ErrStaffAuthDisabled)

	token, err := IssueStaffToken("a", StaffClaims{Email: "s@h.com"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseStaffToken("b", token)
	assert.Error(t, err)

	claims, err := ParseStaffToken("a", "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "s@h.com", claims.Subject)

	expired, err := IssueStaffToken("a", StaffClaims{Email: "s@h.com"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseStaffToken("a", expired)
	assert.Error(t, err)

	assert.Equal(t, "request failed", publicError(errors.New("db exploded")))
}
