// Package orchestrator decides when and how the automated agent answers a
// session: it coalesces bursts of guest messages, serialises generation per
// session, paces outbound messages and runs the greeting, follow-up and close
// timers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/hotel-concierge-platform/internal/assistant"
	"github.com/wolfman30/hotel-concierge-platform/internal/config"
	"github.com/wolfman30/hotel-concierge-platform/internal/hotel"
	"github.com/wolfman30/hotel-concierge-platform/internal/observability/metrics"
	"github.com/wolfman30/hotel-concierge-platform/internal/pacing"
	"github.com/wolfman30/hotel-concierge-platform/internal/push"
	"github.com/wolfman30/hotel-concierge-platform/internal/ratelimit"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// ErrClosed is returned once Shutdown has been called.
var ErrClosed = errors.New("orchestrator: closed")

// Store is the conversation store the orchestrator reads and appends to.
type Store interface {
	OpenSession(ctx context.Context, sess session.Session) (*session.Session, error)
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	AppendTurn(ctx context.Context, turn session.Turn) (session.Turn, error)
	SavePersona(ctx context.Context, sessionID string, persona session.Persona) error
	CloseSession(ctx context.Context, sessionID string) error
}

// Emitter publishes events into a session room.
type Emitter interface {
	pacing.Indicator
	Emit(ctx context.Context, room, event string, payload any) error
}

// Replier produces the agent's next message.
type Replier interface {
	Reply(ctx context.Context, in assistant.Input) (assistant.Outcome, error)
}

// HotelSettings resolves per-hotel configuration.
type HotelSettings interface {
	Get(ctx context.Context, hotelID string) (*hotel.Config, error)
}

// Config holds the orchestrator timings and the identity shim settings.
type Config struct {
	Debounce         time.Duration
	WaitWhileTyping  time.Duration
	LockRetry        time.Duration
	GreetingDelay    time.Duration
	FollowUpDelay    time.Duration
	CloseDelay       time.Duration
	StaffPause       time.Duration
	OutboundCooldown time.Duration
	Pacing           pacing.Config
	AgentEmail       string
	RoleWords        []string
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		Debounce:         2500 * time.Millisecond,
		WaitWhileTyping:  1500 * time.Millisecond,
		LockRetry:        400 * time.Millisecond,
		GreetingDelay:    4 * time.Second,
		FollowUpDelay:    8 * time.Second,
		CloseDelay:       60 * time.Second,
		StaffPause:       15 * time.Minute,
		OutboundCooldown: time.Second,
		Pacing:           pacing.DefaultConfig(),
		AgentEmail:       "concierge@ai.local",
		RoleWords:        []string{"assistant", "concierge", "bot"},
	}
}

// ConfigFrom maps the service configuration onto orchestrator settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Debounce:         cfg.Debounce,
		WaitWhileTyping:  cfg.WaitWhileTyping,
		LockRetry:        cfg.LockRetry,
		GreetingDelay:    cfg.GreetingDelay,
		FollowUpDelay:    cfg.FollowUpDelay,
		CloseDelay:       cfg.CloseDelay,
		StaffPause:       cfg.StaffPause,
		OutboundCooldown: cfg.OutboundCooldown,
		Pacing: pacing.Config{
			Min:       cfg.TypingMin,
			PerChar:   cfg.TypingPerChar,
			Max:       cfg.TypingMax,
			Initial:   cfg.TypingInitial,
			Heartbeat: cfg.TypingHeartbeat,
		},
		AgentEmail: cfg.AgentEmail,
		RoleWords:  cfg.AgentRoleWords,
	}
}

// Orchestrator owns the per-session scheduling state.
type Orchestrator struct {
	cfg      Config
	store    Store
	emitter  Emitter
	replier  Replier
	hotels   HotelSettings
	registry *session.Registry
	tasks    *taskSlots
	cooldown *ratelimit.Gate
	metrics  *metrics.OrchestratorMetrics
	logger   *logging.Logger
	now      func() time.Time

	mu          sync.Mutex
	pending     map[string]session.Turn
	pausedUntil map[string]time.Time
	followUpDue map[string]bool
	closed      bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records scheduler and generation metrics.
func WithMetrics(m *metrics.OrchestratorMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithHotelSettings resolves per-hotel settings; without it every hotel gets the defaults.
func WithHotelSettings(h HotelSettings) Option {
	return func(o *Orchestrator) { o.hotels = h }
}

// WithRegistry shares a state registry, mainly for tests.
func WithRegistry(r *session.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

// New creates an orchestrator. store, emitter and replier are required.
func New(store Store, emitter Emitter, replier Replier, cfg Config, logger *logging.Logger, opts ...Option) *Orchestrator {
	if store == nil {
		panic("orchestrator: store required")
	}
	if emitter == nil {
		panic("orchestrator: emitter required")
	}
	if replier == nil {
		panic("orchestrator: replier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		cfg:         cfg,
		store:       store,
		emitter:     emitter,
		replier:     replier,
		registry:    session.NewRegistry(),
		cooldown:    ratelimit.NewGate(cfg.OutboundCooldown, 1),
		logger:      logger,
		now:         time.Now,
		pending:     make(map[string]session.Turn),
		pausedUntil: make(map[string]time.Time),
		followUpDue: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.tasks = newTaskSlots(func(kind taskKind, event string) {
		o.metrics.ObserveDelayedAction(string(kind), event)
	})
	return o
}

// Receive persists an inbound turn, broadcasts it to the session room and
// hands it to the scheduler.
func (o *Orchestrator) Receive(ctx context.Context, sessionID string, turn session.Turn) (session.Turn, error) {
	if o.isClosed() {
		return turn, ErrClosed
	}
	if strings.TrimSpace(turn.Text) == "" {
		return turn, errors.New("orchestrator: empty message")
	}
	turn.SessionID = sessionID
	saved, err := o.store.AppendTurn(ctx, turn)
	if err != nil {
		return turn, fmt.Errorf("orchestrator: receive: %w", err)
	}
	if !saved.Internal {
		if err := o.emitter.Emit(ctx, sessionID, push.EventMessageReceived, saved); err != nil {
			o.logger.Warn("orchestrator: broadcast inbound failed", "session_id", sessionID, "error", err)
		}
	}
	o.HandleInbound(ctx, saved)
	return saved, nil
}

// OpenSession creates a session and arms its greeting.
func (o *Orchestrator) OpenSession(ctx context.Context, sess session.Session) (*session.Session, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	if strings.TrimSpace(sess.HotelID) == "" {
		return nil, errors.New("orchestrator: hotel id required")
	}
	opened, err := o.store.OpenSession(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open session: %w", err)
	}
	o.HandleSessionOpened(ctx, opened.ID, opened.HotelID)
	return opened, nil
}

// HandleInbound schedules a reply for a persisted turn. Agent turns are
// ignored; staff turns pause the agent and cancel pending work.
func (o *Orchestrator) HandleInbound(ctx context.Context, turn session.Turn) {
	if o.isClosed() || turn.Internal {
		return
	}
	sessionID := turn.SessionID
	sess, cfg := o.loadContext(ctx, sessionID)
	if sess != nil && sess.Closed() {
		o.metrics.ObserveInbound("guest", "closed")
		return
	}
	persona := o.personaHint(sessionID, sess)
	identity := o.identity(cfg)

	switch {
	case identity.IsAgent(turn, persona):
		o.metrics.ObserveInbound("agent", "ignored")
		return
	case identity.IsStaff(turn, persona):
		o.metrics.ObserveInbound("staff", "paused")
		o.pauseForStaff(ctx, sessionID, turn)
		return
	}

	o.tasks.cancel(sessionID, kindClose)
	if o.paused(sessionID) {
		o.metrics.ObserveInbound("guest", "paused")
		return
	}
	if !cfg.AutoReplyEnabled {
		o.metrics.ObserveInbound("guest", "auto_reply_off")
		return
	}

	o.mu.Lock()
	_, coalesced := o.pending[sessionID]
	o.pending[sessionID] = turn
	o.mu.Unlock()
	if coalesced {
		o.metrics.ObserveCoalesced()
	}
	o.registry.MarkPending(sessionID)

	delay := o.cfg.Debounce
	if o.registry.Typing(sessionID).Busy(o.now(), o.cfg.WaitWhileTyping) {
		delay = o.cfg.WaitWhileTyping
		o.registry.HoldForTyping(sessionID)
	}
	o.tasks.schedule(sessionID, kindDebounce, delay, func(ctx context.Context) {
		o.onDebounce(ctx, sessionID)
	})
	o.metrics.ObserveInbound("guest", "scheduled")

	if sess != nil && !o.registry.Greeted(sessionID) && !hasAgentTurn(sess.Turns, identity.AgentFunc(persona)) {
		o.armGreeting(sessionID)
	}
}

// HandleTyping records a guest typing signal. Any activity cancels a pending close.
func (o *Orchestrator) HandleTyping(sessionID string, active bool) {
	if o.isClosed() {
		return
	}
	o.registry.SetTyping(sessionID, active, o.now())
	o.tasks.cancel(sessionID, kindClose)
	if active && o.tasks.pending(sessionID, kindDebounce) {
		o.registry.HoldForTyping(sessionID)
	}
}

// HandleSessionOpened arms the greeting for a newly opened session unless it
// was already greeted or a greeting is pending.
func (o *Orchestrator) HandleSessionOpened(ctx context.Context, sessionID, hotelID string) {
	if o.isClosed() || o.registry.Greeted(sessionID) {
		return
	}
	if hotelID != "" {
		if cfg := o.hotelConfig(ctx, hotelID); !cfg.AutoReplyEnabled {
			o.logger.Info("orchestrator: auto reply disabled, not greeting", "session_id", sessionID, "hotel_id", hotelID)
			return
		}
	}
	o.armGreeting(sessionID)
}

// Scheduled lists the pending timers of a session by kind with their due time.
func (o *Orchestrator) Scheduled(sessionID string) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, kind := range []taskKind{kindDebounce, kindGreeting, kindFollowUp, kindClose} {
		if at, ok := o.tasks.dueAt(sessionID, kind); ok {
			out[string(kind)] = at
		}
	}
	return out
}

// Shutdown cancels every pending task and waits for running ones until ctx ends.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.tasks.shutdown(ctx)
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) armGreeting(sessionID string) {
	if o.tasks.pending(sessionID, kindGreeting) {
		return
	}
	o.tasks.schedule(sessionID, kindGreeting, o.cfg.GreetingDelay, func(ctx context.Context) {
		o.onGreeting(ctx, sessionID)
	})
}

func (o *Orchestrator) pauseForStaff(ctx context.Context, sessionID string, turn session.Turn) {
	o.tasks.cancelSession(sessionID)
	o.mu.Lock()
	delete(o.pending, sessionID)
	delete(o.followUpDue, sessionID)
	if o.cfg.StaffPause > 0 {
		o.pausedUntil[sessionID] = o.now().Add(o.cfg.StaffPause)
	}
	o.mu.Unlock()
	o.registry.ClearPending(sessionID)

	payload := map[string]string{"session_id": sessionID, "staff_name": turn.AuthorName}
	if err := o.emitter.Emit(ctx, sessionID, push.EventAIPaused, payload); err != nil {
		o.logger.Warn("orchestrator: emit ai-paused failed", "session_id", sessionID, "error", err)
	}
	o.logger.Info("orchestrator: staff took over", "session_id", sessionID, "staff", turn.AuthorName)
}

func (o *Orchestrator) paused(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	until, ok := o.pausedUntil[sessionID]
	if !ok {
		return false
	}
	if o.now().Before(until) {
		return true
	}
	delete(o.pausedUntil, sessionID)
	return false
}

func (o *Orchestrator) hasPending(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.pending[sessionID]
	return ok
}

// deferFollowUp hands a due follow-up to the debounce pass that will answer
// the guest's newer message.
func (o *Orchestrator) deferFollowUp(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.followUpDue[sessionID] = true
}

func (o *Orchestrator) takeFollowUpDue(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	due := o.followUpDue[sessionID]
	delete(o.followUpDue, sessionID)
	return due
}

func (o *Orchestrator) takePending(sessionID string) (session.Turn, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	turn, ok := o.pending[sessionID]
	delete(o.pending, sessionID)
	return turn, ok
}

// loadContext reads the session and its hotel settings. Failures are logged
// and the defaults returned so scheduling can continue.
func (o *Orchestrator) loadContext(ctx context.Context, sessionID string) (*session.Session, *hotel.Config) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		o.logger.Warn("orchestrator: load session failed", "session_id", sessionID, "error", err)
		return nil, hotel.DefaultConfig("")
	}
	return sess, o.hotelConfig(ctx, sess.HotelID)
}

func (o *Orchestrator) hotelConfig(ctx context.Context, hotelID string) *hotel.Config {
	if o.hotels == nil {
		return hotel.DefaultConfig(hotelID)
	}
	cfg, err := o.hotels.Get(ctx, hotelID)
	if err != nil || cfg == nil {
		o.logger.Warn("orchestrator: hotel settings unavailable, using defaults", "hotel_id", hotelID, "error", err)
		return hotel.DefaultConfig(hotelID)
	}
	return cfg
}

func (o *Orchestrator) identity(cfg *hotel.Config) session.Identity {
	id := session.Identity{AgentEmail: o.cfg.AgentEmail, RoleWords: o.cfg.RoleWords}
	if cfg != nil {
		id.StaffDomains = cfg.StaffDomains
	}
	return id
}

// personaHint returns the cached or stored persona without assigning one.
func (o *Orchestrator) personaHint(sessionID string, sess *session.Session) *session.Persona {
	if p, ok := o.registry.Persona(sessionID); ok {
		return &p
	}
	if sess != nil && sess.Persona != nil {
		p := *sess.Persona
		return &p
	}
	return nil
}

// persona returns the session persona, assigning and storing one on first
// need. A cached persona is never replaced.
func (o *Orchestrator) persona(ctx context.Context, sess *session.Session, cfg *hotel.Config) session.Persona {
	p, assigned := o.registry.EnsurePersona(sess.ID, func() session.Persona {
		if sess.Persona != nil && !sess.Persona.IsZero() {
			return *sess.Persona
		}
		return session.ChoosePersona(sess.ID, sess.Language, cfg.Personas)
	})
	if assigned && (sess.Persona == nil || sess.Persona.IsZero()) {
		if err := o.store.SavePersona(ctx, sess.ID, p); err != nil {
			o.logger.Warn("orchestrator: save persona failed", "session_id", sess.ID, "error", err)
		}
	}
	return p
}

func hasAgentTurn(turns []session.Turn, isAgent func(session.Turn) bool) bool {
	for _, t := range turns {
		if !t.Internal && isAgent(t) {
			return true
		}
	}
	return false
}

// recoverPass keeps a panicking task from taking the process down.
func (o *Orchestrator) recoverPass(kind taskKind, sessionID string) {
	if r := recover(); r != nil {
		o.logger.Error("orchestrator: task panicked", "kind", string(kind), "session_id", sessionID, "panic", fmt.Sprint(r))
		o.metrics.ObserveGeneration("panic", 0)
	}
}
