// Package assistant runs the two-pass tool-calling protocol that turns a
// conversation into the agent's next reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/hotel-concierge-platform/internal/llm"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

const defaultHistoryTurns = 12

var ErrEmptyReply = errors.New("assistant: model returned an empty reply")

// ToolRecorder observes tool invocations, typically for metrics.
type ToolRecorder interface {
	ObserveToolInvocation(tool string, ok, completed bool)
}

// Input is everything one reply needs.
type Input struct {
	Session *session.Session
	Persona session.Persona
	IsAgent func(session.Turn) bool
	// Pending is the turn being answered; appended when the history does not
	// already end with it.
	Pending    session.Turn
	Call       CallContext
	HotelName  string
	Directives []string
	Now        time.Time
}

// Outcome is the final reply and which side effects actually completed.
type Outcome struct {
	Text           string
	DidReservation bool
	DidUpdate      bool
	Invocations    []Invocation
	Usage          llm.TokenUsage
}

// Assistant drives the completion service.
type Assistant struct {
	client       llm.Client
	dispatcher   *Dispatcher
	model        string
	maxTokens    int32
	temperature  float32
	historyTurns int
	recorder     ToolRecorder
	tracer       trace.Tracer
	logger       *logging.Logger
}

// Option customizes an Assistant.
type Option func(*Assistant)

func WithModel(model string) Option {
	return func(a *Assistant) { a.model = model }
}

func WithMaxTokens(n int32) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(a *Assistant) { a.temperature = t }
}

// WithHistoryTurns sets how many trailing turns are sent to the model.
func WithHistoryTurns(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.historyTurns = n
		}
	}
}

func WithToolRecorder(r ToolRecorder) Option {
	return func(a *Assistant) { a.recorder = r }
}

func New(client llm.Client, dispatcher *Dispatcher, logger *logging.Logger, opts ...Option) *Assistant {
	if client == nil {
		panic("assistant: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil, nil, nil, logger)
	}
	a := &Assistant{
		client:       client,
		dispatcher:   dispatcher,
		maxTokens:    600,
		temperature:  0.3,
		historyTurns: defaultHistoryTurns,
		tracer:       otel.Tracer("hotel.internal.assistant"),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reply runs pass 1 with tools enabled. Without tool calls its text is final;
// otherwise every call is dispatched in order and pass 2 runs with tool
// selection disabled to produce the final text.
func (a *Assistant) Reply(ctx context.Context, in Input) (Outcome, error) {
	sessionID := in.Call.SessionID
	ctx, span := a.tracer.Start(ctx, "assistant.reply", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	req := llm.Request{
		Model:       a.model,
		System:      []string{systemPrompt(in)},
		Messages:    a.history(in),
		Tools:       Definitions(),
		ToolChoice:  llm.ToolChoiceAuto,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}

	first, err := a.client.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pass 1 failed")
		return Outcome{}, fmt.Errorf("assistant: pass 1: %w", err)
	}

	var out Outcome
	out.Usage = first.Usage
	if len(first.ToolCalls) == 0 {
		out.Text = strings.TrimSpace(first.Text)
		if out.Text == "" {
			return out, ErrEmptyReply
		}
		span.SetAttributes(attribute.Int("tool_calls", 0))
		return out, nil
	}

	calls := make([]llm.ToolCall, len(first.ToolCalls))
	copy(calls, first.ToolCalls)
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}

	messages := append([]llm.Message{}, req.Messages...)
	messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: first.Text, ToolCalls: calls})
	for _, call := range calls {
		inv := a.dispatcher.Dispatch(ctx, call, in.Call)
		out.Invocations = append(out.Invocations, inv)
		if inv.Completed {
			switch inv.Tool {
			case ToolCreateReservation:
				out.DidReservation = true
			case ToolUpdateReservation:
				out.DidUpdate = true
			}
		}
		if a.recorder != nil {
			a.recorder.ObserveToolInvocation(inv.Tool, inv.OK(), inv.Completed)
		}
		messages = append(messages, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: inv.Content()})
	}
	span.SetAttributes(
		attribute.Int("tool_calls", len(calls)),
		attribute.Bool("did_reservation", out.DidReservation),
		attribute.Bool("did_update", out.DidUpdate),
	)

	req.Messages = messages
	req.ToolChoice = llm.ToolChoiceNone
	second, err := a.client.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pass 2 failed")
		a.logger.Error("assistant: pass 2 failed after tools ran", "session_id", sessionID, "did_reservation", out.DidReservation, "did_update", out.DidUpdate, "error", err)
		return out, fmt.Errorf("assistant: pass 2: %w", err)
	}
	out.Usage.InputTokens += second.Usage.InputTokens
	out.Usage.OutputTokens += second.Usage.OutputTokens
	out.Usage.TotalTokens += second.Usage.TotalTokens
	out.Text = strings.TrimSpace(second.Text)
	if out.Text == "" {
		return out, ErrEmptyReply
	}
	return out, nil
}

// history maps the trailing turns to chat roles. Internal notes are skipped,
// agent turns become assistant messages and everything else is user input.
func (a *Assistant) history(in Input) []llm.Message {
	var turns []session.Turn
	if in.Session != nil {
		turns = in.Session.Turns
	}
	visible := make([]session.Turn, 0, len(turns)+1)
	for _, t := range turns {
		if t.Internal || strings.TrimSpace(t.Text) == "" {
			continue
		}
		visible = append(visible, t)
	}
	if p := in.Pending; strings.TrimSpace(p.Text) != "" && !containsTurn(visible, p) {
		visible = append(visible, p)
	}
	if len(visible) > a.historyTurns {
		visible = visible[len(visible)-a.historyTurns:]
	}

	isAgent := in.IsAgent
	if isAgent == nil {
		isAgent = func(t session.Turn) bool { return t.Role == session.RoleAgent }
	}
	msgs := make([]llm.Message, 0, len(visible))
	for _, t := range visible {
		if isAgent(t) {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Text})
			continue
		}
		content := t.Text
		if t.Role == session.RoleStaff && t.AuthorName != "" {
			content = fmt.Sprintf("[hotel staff %s] %s", t.AuthorName, t.Text)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: content})
	}
	return msgs
}

func containsTurn(turns []session.Turn, t session.Turn) bool {
	for i := len(turns) - 1; i >= 0; i-- {
		if t.ID != "" && turns[i].ID == t.ID {
			return true
		}
	}
	if t.ID == "" && len(turns) > 0 {
		last := turns[len(turns)-1]
		return last.Text == t.Text && last.Role == t.Role
	}
	return false
}
