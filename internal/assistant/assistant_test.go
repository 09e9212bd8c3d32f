package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hotel-concierge-platform/internal/intent"
	"github.com/wolfman30/hotel-concierge-platform/internal/llm"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

type scriptedLLM struct {
	responses []llm.Response
	errs      []error
	requests  []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], err
	}
	return llm.Response{}, err
}

type countingRecorder struct {
	calls map[string]int
}

func (c *countingRecorder) ObserveToolInvocation(tool string, ok, completed bool) {
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[tool]++
}

var testIdentity = session.DefaultIdentity("concierge@hotel.example")

func agentTurn(text string) session.Turn {
	return session.Turn{ID: "a-" + text, Role: session.RoleAgent, Text: text, Timestamp: time.Now()}
}

func guestTurn(id, text string) session.Turn {
	return session.Turn{ID: id, Role: session.RoleGuest, Text: text, Timestamp: time.Now()}
}

func buildInput(turns []session.Turn, pending session.Turn) Input {
	isAgent := testIdentity.AgentFunc(nil)
	flags := intent.Classify(turns, isAgent, pending.Text)
	return Input{
		Session: &session.Session{ID: "s1", HotelID: "h1", Language: "en", Turns: append(turns, pending)},
		Persona: session.Persona{DisplayName: "Lucia", Language: "en"},
		IsAgent: isAgent,
		Pending: pending,
		Call: CallContext{
			SessionID:        "s1",
			HotelID:          "h1",
			Language:         "en",
			ConfirmedProceed: flags.ConfirmedProceed,
			ConfirmedCancel:  flags.ConfirmedCancel,
		},
	}
}

func TestReplyWithoutToolsIsSinglePass(t *testing.T) {
	client := &scriptedLLM{responses: []llm.Response{{Text: " Hi there! "}}}
	a := New(client, nil, logging.Discard(), WithModel("m1"))

	out, err := a.Reply(context.Background(), buildInput(nil, guestTurn("g1", "hello")))
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", out.Text)
	require.Len(t, client.requests, 1)
	assert.Equal(t, llm.ToolChoiceAuto, client.requests[0].ToolChoice)
	assert.Len(t, client.requests[0].Tools, 4)
	assert.Equal(t, "m1", client.requests[0].Model)
}

func TestReplyConfirmedProceedCreatesReservation(t *testing.T) {
	turns := []session.Turn{
		guestTurn("g0", "Two deluxe rooms June 10 to 12, I'm Ana Souza, ana@example.com"),
		agentTurn("That's $440 total. Should I proceed with booking?"),
	}
	client := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{Name: ToolCreateReservation, Arguments: createArgsJSON}}},
		{Text: "You're booked! Confirmation HX42."},
	}}
	res := newFakeReservations()
	recorder := &countingRecorder{}
	d := newTestDispatcher(&fakePricer{quote: openQuote()}, res, nil)
	a := New(client, d, logging.Discard(), WithToolRecorder(recorder))

	out, err := a.Reply(context.Background(), buildInput(turns, guestTurn("g1", "yes")))
	require.NoError(t, err)
	assert.True(t, out.DidReservation)
	assert.False(t, out.DidUpdate)
	assert.Equal(t, "You're booked! Confirmation HX42.", out.Text)
	assert.Len(t, res.created, 1)
	assert.Equal(t, 1, recorder.calls[ToolCreateReservation])

	require.Len(t, client.requests, 2)
	second := client.requests[1]
	assert.Equal(t, llm.ToolChoiceNone, second.ToolChoice)
	n := len(second.Messages)
	require.GreaterOrEqual(t, n, 2)
	assistantMsg := second.Messages[n-2]
	toolMsg := second.Messages[n-1]
	assert.Equal(t, llm.RoleAssistant, assistantMsg.Role)
	require.Len(t, assistantMsg.ToolCalls, 1)
	assert.NotEmpty(t, assistantMsg.ToolCalls[0].ID, "missing call ids are filled in")
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, assistantMsg.ToolCalls[0].ID, toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"ok":true`)
}

func TestReplyPlainAgentTurnDoesNotConfirm(t *testing.T) {
	turns := []session.Turn{agentTurn("We have deluxe rooms from $100 a night.")}
	client := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: ToolCreateReservation, Arguments: createArgsJSON}}},
		{Text: "Shall I go ahead and book it for you?"},
	}}
	res := newFakeReservations()
	a := New(client, newTestDispatcher(&fakePricer{quote: openQuote()}, res, nil), logging.Discard())

	out, err := a.Reply(context.Background(), buildInput(turns, guestTurn("g1", "yes")))
	require.NoError(t, err)
	assert.False(t, out.DidReservation)
	assert.Empty(t, res.created)
	require.Len(t, out.Invocations, 1)
	assert.Equal(t, true, out.Invocations[0].Result["needs_confirmation"])
}

func TestReplyCancelFlow(t *testing.T) {
	turns := []session.Turn{agentTurn("Are you sure you want to cancel reservation HX42?")}
	client := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: ToolUpdateReservation, Arguments: `{"reservation_id":"r-1","status":"cancelled"}`}}},
		{Text: "Your reservation is cancelled."},
	}}
	res := newFakeReservations()
	a := New(client, newTestDispatcher(nil, res, nil), logging.Discard())

	out, err := a.Reply(context.Background(), buildInput(turns, guestTurn("g1", "yes")))
	require.NoError(t, err)
	assert.True(t, out.DidUpdate)
	assert.Equal(t, "cancelled", res.updated["r-1"]["status"])
}

func TestReplyUnknownToolDoesNotFail(t *testing.T) {
	client := &scriptedLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "order_pizza"}}},
		{Text: "Sorry, I can't help with that."},
	}}
	a := New(client, nil, logging.Discard())

	out, err := a.Reply(context.Background(), buildInput(nil, guestTurn("g1", "pizza?")))
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I can't help with that.", out.Text)
	assert.Equal(t, "unknown tool", out.Invocations[0].Result["error"])
}

func TestReplyErrors(t *testing.T) {
	client := &scriptedLLM{errs: []error{errors.New("boom")}}
	_, err := New(client, nil, logging.Discard()).Reply(context.Background(), buildInput(nil, guestTurn("g1", "hi")))
	assert.ErrorContains(t, err, "pass 1")

	client = &scriptedLLM{responses: []llm.Response{{Text: "  "}}}
	_, err = New(client, nil, logging.Discard()).Reply(context.Background(), buildInput(nil, guestTurn("g1", "hi")))
	assert.ErrorIs(t, err, ErrEmptyReply)

	turns := []session.Turn{agentTurn("Should I proceed with booking?")}
	client = &scriptedLLM{
		responses: []llm.Response{{ToolCalls: []llm.ToolCall{{ID: "c1", Name: ToolCreateReservation, Arguments: createArgsJSON}}}},
		errs:      []error{nil, errors.New("pass two down")},
	}
	d := newTestDispatcher(&fakePricer{quote: openQuote()}, newFakeReservations(), nil)
	out, err := New(client, d, logging.Discard()).Reply(context.Background(), buildInput(turns, guestTurn("g1", "yes")))
	assert.ErrorContains(t, err, "pass 2")
	assert.True(t, out.DidReservation, "completed side effects are still reported")
}

func TestHistoryMapping(t *testing.T) {
	a := New(&scriptedLLM{}, nil, logging.Discard(), WithHistoryTurns(3))
	turns := []session.Turn{
		guestTurn("g0", "first"),
		agentTurn("Hello, I'm Lucia."),
		{ID: "n1", Role: session.RoleAgent, Text: "internal: VIP", Internal: true},
		{ID: "st", Role: session.RoleStaff, AuthorName: "Marco", Text: "Late checkout approved"},
		guestTurn("g1", "thanks"),
	}
	in := Input{Session: &session.Session{Turns: turns}, IsAgent: testIdentity.AgentFunc(nil), Pending: turns[4]}

	msgs := a.history(in)
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "[hotel staff Marco] Late checkout approved", msgs[1].Content)
	assert.Equal(t, "thanks", msgs[2].Content)

	in.Session.Turns = turns[:4]
	msgs = a.history(in)
	assert.Equal(t, "thanks", msgs[len(msgs)-1].Content, "pending turn is appended when not yet persisted")
}

func TestSystemPromptIncludesDirectives(t *testing.T) {
	in := Input{
		Persona:    session.Persona{DisplayName: "Lucia"},
		HotelName:  "Casa Azul",
		Call:       CallContext{Language: "es", GuestName: "Ana"},
		Directives: []string{DirectiveClose},
		Now:        time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	prompt := systemPrompt(in)
	assert.Contains(t, prompt, "You are Lucia, a concierge for Casa Azul")
	assert.Contains(t, prompt, "Reply in Spanish")
	assert.Contains(t, prompt, "2026-06-01")
	assert.Contains(t, prompt, DirectiveClose)
}
