package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/hotel-concierge-platform/internal/assistant"
	"github.com/wolfman30/hotel-concierge-platform/internal/hotel"
	"github.com/wolfman30/hotel-concierge-platform/internal/intent"
	"github.com/wolfman30/hotel-concierge-platform/internal/pacing"
	"github.com/wolfman30/hotel-concierge-platform/internal/push"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
)

// Generation outcomes recorded in metrics.
const (
	outcomePublished = "published"
	outcomeSkipped   = "skipped"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

// onDebounce fires when the guest has been quiet for the debounce window.
func (o *Orchestrator) onDebounce(ctx context.Context, sessionID string) {
	defer o.recoverPass(kindDebounce, sessionID)

	typing := o.registry.Typing(sessionID)
	if typing.Busy(o.now(), o.cfg.WaitWhileTyping) {
		o.registry.HoldForTyping(sessionID)
		wait := typing.Remaining(o.now(), o.cfg.WaitWhileTyping)
		if wait <= 0 {
			wait = o.cfg.LockRetry
		}
		o.tasks.schedule(sessionID, kindDebounce, wait, func(ctx context.Context) {
			o.onDebounce(ctx, sessionID)
		})
		return
	}
	if !o.registry.TryLock(sessionID) {
		o.metrics.ObserveLockRetry()
		o.tasks.schedule(sessionID, kindDebounce, o.cfg.LockRetry, func(ctx context.Context) {
			o.onDebounce(ctx, sessionID)
		})
		return
	}
	defer o.registry.Unlock(sessionID)

	turn, ok := o.takePending(sessionID)
	if !ok {
		return
	}
	o.generate(ctx, sessionID, turn, false)
}

// onFollowUp delivers the results the agent promised while it was "checking".
func (o *Orchestrator) onFollowUp(ctx context.Context, sessionID string) {
	defer o.recoverPass(kindFollowUp, sessionID)

	if !o.registry.TryLock(sessionID) {
		o.metrics.ObserveLockRetry()
		o.tasks.schedule(sessionID, kindFollowUp, o.cfg.LockRetry, func(ctx context.Context) {
			o.onFollowUp(ctx, sessionID)
		})
		return
	}
	defer o.registry.Unlock(sessionID)

	o.generate(ctx, sessionID, session.Turn{}, true)
}

// onClose closes the session after the farewell went out.
func (o *Orchestrator) onClose(ctx context.Context, sessionID string) {
	defer o.recoverPass(kindClose, sessionID)

	if !o.registry.TryLock(sessionID) {
		o.metrics.ObserveLockRetry()
		o.tasks.schedule(sessionID, kindClose, o.cfg.LockRetry, func(ctx context.Context) {
			o.onClose(ctx, sessionID)
		})
		return
	}
	defer o.registry.Unlock(sessionID)

	if err := o.store.CloseSession(ctx, sessionID); err != nil {
		o.logger.Error("orchestrator: close session failed", "session_id", sessionID, "error", err)
		return
	}
	o.tasks.cancelSession(sessionID)
	o.mu.Lock()
	delete(o.pending, sessionID)
	delete(o.pausedUntil, sessionID)
	delete(o.followUpDue, sessionID)
	o.mu.Unlock()
	o.cooldown.Forget(sessionID)

	if err := o.emitter.Emit(ctx, sessionID, push.EventSessionClosed, map[string]string{"session_id": sessionID}); err != nil {
		o.logger.Warn("orchestrator: emit session-closed failed", "session_id", sessionID, "error", err)
	}
	o.logger.Info("orchestrator: session closed", "session_id", sessionID)
}

// onGreeting sends the opening message unless someone already spoke for the hotel.
func (o *Orchestrator) onGreeting(ctx context.Context, sessionID string) {
	defer o.recoverPass(kindGreeting, sessionID)

	if o.registry.Greeted(sessionID) {
		return
	}
	if !o.registry.TryLock(sessionID) {
		o.metrics.ObserveLockRetry()
		o.tasks.schedule(sessionID, kindGreeting, o.cfg.LockRetry, func(ctx context.Context) {
			o.onGreeting(ctx, sessionID)
		})
		return
	}
	defer o.registry.Unlock(sessionID)

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		o.logger.Warn("orchestrator: greeting could not load session", "session_id", sessionID, "error", err)
		return
	}
	if sess.Closed() || o.paused(sessionID) {
		return
	}
	cfg := o.hotelConfig(ctx, sess.HotelID)
	if !cfg.AutoReplyEnabled {
		return
	}
	persona := o.persona(ctx, sess, cfg)
	identity := o.identity(cfg)
	for _, t := range sess.Turns {
		if t.Internal {
			continue
		}
		if identity.IsAgent(t, &persona) || identity.IsStaff(t, &persona) {
			o.logger.Debug("orchestrator: greeting skipped, conversation already answered", "session_id", sessionID)
			return
		}
	}

	text := ComposeGreeting(persona, sess.GuestFirstName(), cfg.Name, ExtractTopic(sess.Topic))
	if !o.registry.MarkGreeted(sessionID) {
		return
	}
	if err := o.publish(ctx, sess, persona, text); err != nil {
		o.metrics.ObservePublished("greeting", "failed")
		o.logger.Warn("orchestrator: greeting not published", "session_id", sessionID, "error", err)
		return
	}
	o.metrics.ObservePublished("greeting", "sent")
}

// generate runs one reply pass. The caller holds the session lock. pending is
// the guest turn being answered; a follow-up pass answers the latest guest turn.
func (o *Orchestrator) generate(ctx context.Context, sessionID string, pending session.Turn, followUp bool) {
	start := o.now()
	outcome := outcomeSkipped
	defer func() {
		o.metrics.ObserveGeneration(outcome, time.Since(start).Seconds())
	}()

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		outcome = outcomeError
		o.logger.Error("orchestrator: load session failed", "session_id", sessionID, "error", err)
		return
	}
	if sess.Closed() || o.paused(sessionID) {
		return
	}
	cfg := o.hotelConfig(ctx, sess.HotelID)
	if !cfg.AutoReplyEnabled {
		return
	}
	persona := o.persona(ctx, sess, cfg)
	identity := o.identity(cfg)
	isAgent := identity.AgentFunc(&persona)

	if followUp {
		// A guest message waiting on its debounce is answered once, by that pass.
		if o.hasPending(sessionID) {
			o.deferFollowUp(sessionID)
			o.logger.Debug("orchestrator: follow-up folded into pending reply", "session_id", sessionID)
			return
		}
		last, ok := lastAgentTurn(sess.Turns, isAgent)
		if !ok || !intent.ContainsWaitPhrase(last.Text) {
			o.logger.Debug("orchestrator: follow-up superseded by a newer reply", "session_id", sessionID)
			return
		}
		guest, ok := lastGuestTurn(sess.Turns, isAgent, identity, &persona)
		if !ok {
			return
		}
		pending = guest
	}

	carried := !followUp && o.takeFollowUpDue(sessionID)
	flags := intent.Classify(turnsBefore(sess.Turns, pending), isAgent, pending.Text)
	var directives []string
	switch {
	case followUp || carried:
		directives = append(directives, assistant.DirectiveFollowUp)
	case flags.IsSalutationOnly && (o.tasks.pending(sessionID, kindGreeting) || answeredAfter(sess.Turns, isAgent, pending)):
		o.logger.Debug("orchestrator: salutation left to the greeting", "session_id", sessionID)
		return
	case flags.IsAckOfWait && o.tasks.pending(sessionID, kindFollowUp):
		o.logger.Debug("orchestrator: guest acknowledged the wait", "session_id", sessionID)
		return
	}
	if !followUp {
		if flags.IsCloseIntent {
			directives = append(directives, assistant.DirectiveClose)
		}
		if flags.IsWaitingText {
			directives = append(directives, assistant.DirectiveWaiting)
		}
	}

	out, err := o.replier.Reply(ctx, assistant.Input{
		Session: sess,
		Persona: persona,
		IsAgent: isAgent,
		Pending: pending,
		Call: assistant.CallContext{
			SessionID:        sess.ID,
			HotelID:          sess.HotelID,
			Language:         persona.Language,
			GuestName:        sess.GuestName,
			GuestEmail:       sess.GuestEmail,
			ConfirmedProceed: flags.ConfirmedProceed,
			ConfirmedCancel:  flags.ConfirmedCancel,
		},
		HotelName:  cfg.DisplayName(),
		Directives: directives,
		Now:        o.now().In(cfg.Location()),
	})
	if err != nil {
		outcome = outcomeError
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			outcome = outcomeCancelled
		}
		o.logger.Error("orchestrator: reply failed", "session_id", sessionID,
			"did_reservation", out.DidReservation, "did_update", out.DidUpdate, "error", err)
		return
	}
	if ctx.Err() != nil {
		outcome = outcomeCancelled
		return
	}

	if err := o.publish(ctx, sess, persona, out.Text); err != nil {
		outcome = outcomeError
		if ctx.Err() != nil {
			outcome = outcomeCancelled
		}
		o.metrics.ObservePublished("reply", "failed")
		o.logger.Warn("orchestrator: reply not published", "session_id", sessionID, "error", err)
		return
	}
	outcome = outcomePublished
	o.metrics.ObservePublished("reply", "sent")
	o.registry.MarkGreeted(sessionID)
	o.tasks.cancel(sessionID, kindGreeting)

	if intent.ContainsWaitPhrase(out.Text) && !followUp && !carried {
		o.tasks.schedule(sessionID, kindFollowUp, o.cfg.FollowUpDelay, func(ctx context.Context) {
			o.onFollowUp(ctx, sessionID)
		})
	} else {
		o.tasks.cancel(sessionID, kindFollowUp)
	}
	if flags.IsCloseIntent && !followUp {
		o.tasks.schedule(sessionID, kindClose, o.cfg.CloseDelay, func(ctx context.Context) {
			o.onClose(ctx, sessionID)
		})
	}
}

// publish paces and delivers an agent message: typing indicator, cooldown,
// append to the store, then broadcast.
func (o *Orchestrator) publish(ctx context.Context, sess *session.Session, persona session.Persona, text string) error {
	dur := pacing.TypingDuration(text, o.cfg.Pacing)
	if err := pacing.Simulate(ctx, o.emitter, sess.ID, dur, o.cfg.Pacing); err != nil {
		return err
	}
	if err := o.cooldown.Wait(ctx, sess.ID); err != nil {
		return err
	}

	saved, err := o.store.AppendTurn(ctx, session.Turn{
		SessionID:   sess.ID,
		Role:        session.RoleAgent,
		AuthorName:  persona.DisplayName,
		AuthorEmail: o.cfg.AgentEmail,
		Text:        text,
		Timestamp:   o.now().UTC(),
	})
	stop := map[string]string{"session_id": sess.ID}
	if err != nil {
		_ = o.emitter.Emit(ctx, sess.ID, push.EventTypingStop, stop)
		return err
	}
	if err := o.emitter.Emit(ctx, sess.ID, push.EventTypingStop, stop); err != nil {
		o.logger.Warn("orchestrator: emit typing-stop failed", "session_id", sess.ID, "error", err)
	}
	if err := o.emitter.Emit(ctx, sess.ID, push.EventMessageReceived, saved); err != nil {
		o.logger.Warn("orchestrator: emit message failed", "session_id", sess.ID, "error", err)
	}
	return nil
}

func lastAgentTurn(turns []session.Turn, isAgent func(session.Turn) bool) (session.Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if !turns[i].Internal && isAgent(turns[i]) {
			return turns[i], true
		}
	}
	return session.Turn{}, false
}

func lastGuestTurn(turns []session.Turn, isAgent func(session.Turn) bool, identity session.Identity, persona *session.Persona) (session.Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Internal || isAgent(t) || identity.IsStaff(t, persona) {
			continue
		}
		return t, true
	}
	return session.Turn{}, false
}

// turnsBefore returns the conversation preceding the pending turn.
func turnsBefore(turns []session.Turn, pending session.Turn) []session.Turn {
	if pending.ID == "" {
		return turns
	}
	for i, t := range turns {
		if t.ID == pending.ID {
			return turns[:i]
		}
	}
	return turns
}

// answeredAfter reports whether an agent turn follows the pending turn.
func answeredAfter(turns []session.Turn, isAgent func(session.Turn) bool, pending session.Turn) bool {
	seen := pending.ID == ""
	for _, t := range turns {
		if !seen {
			seen = t.ID == pending.ID
			continue
		}
		if !t.Internal && isAgent(t) {
			return true
		}
	}
	return false
}

var _ HotelSettings = (*hotel.Store)(nil)
