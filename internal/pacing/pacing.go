// Package pacing simulates human reply timing: how long "typing" lasts for a
// reply, and whether the guest is still composing a message.
package pacing

import (
	"context"
	"time"
	"unicode/utf8"
)

// Config holds the typing simulation parameters.
type Config struct {
	Min       time.Duration
	PerChar   time.Duration
	Max       time.Duration
	Initial   time.Duration
	Heartbeat time.Duration
}

// DefaultConfig returns the stock pacing parameters.
func DefaultConfig() Config {
	return Config{
		Min:       1200 * time.Millisecond,
		PerChar:   35 * time.Millisecond,
		Max:       6 * time.Second,
		Initial:   300 * time.Millisecond,
		Heartbeat: 2 * time.Second,
	}
}

// TypingDuration returns clamp(Min + runes(text)*PerChar, Min, Max).
func TypingDuration(text string, cfg Config) time.Duration {
	d := cfg.Min + time.Duration(utf8.RuneCountInString(text))*cfg.PerChar
	if d < cfg.Min {
		d = cfg.Min
	}
	if cfg.Max > 0 && d > cfg.Max {
		d = cfg.Max
	}
	return d
}

// TypingState is the guest's typing status.
type TypingState struct {
	Active    bool
	StoppedAt time.Time
}

// Start marks the guest as typing.
func (s TypingState) Start() TypingState {
	return TypingState{Active: true, StoppedAt: s.StoppedAt}
}

// Stop marks the guest as no longer typing at now.
func (s TypingState) Stop(now time.Time) TypingState {
	return TypingState{Active: false, StoppedAt: now}
}

// Busy reports whether the guest is typing or stopped less than grace ago.
func (s TypingState) Busy(now time.Time, grace time.Duration) bool {
	if s.Active {
		return true
	}
	if s.StoppedAt.IsZero() {
		return false
	}
	return now.Sub(s.StoppedAt) < grace
}

// Remaining returns how long to wait before the guest counts as paused.
// While actively typing the full grace is returned.
func (s TypingState) Remaining(now time.Time, grace time.Duration) time.Duration {
	if s.Active {
		return grace
	}
	if s.StoppedAt.IsZero() {
		return 0
	}
	left := grace - now.Sub(s.StoppedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Indicator emits the typing indicator for a room.
type Indicator interface {
	TypingStarted(ctx context.Context, room string) error
}

// Simulate shows the typing indicator for dur: first after cfg.Initial, then
// every cfg.Heartbeat until dur has elapsed. The caller replaces the indicator
// with the actual message. It returns ctx.Err() when cancelled early.
func Simulate(ctx context.Context, ind Indicator, room string, dur time.Duration, cfg Config) error {
	deadline := time.NewTimer(dur)
	defer deadline.Stop()

	initial := cfg.Initial
	if initial > dur {
		initial = dur
	}
	first := time.NewTimer(initial)
	defer first.Stop()

	var heartbeat <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-first.C:
			if ind != nil {
				_ = ind.TypingStarted(ctx, room)
			}
			if cfg.Heartbeat > 0 {
				ticker := time.NewTicker(cfg.Heartbeat)
				defer ticker.Stop()
				heartbeat = ticker.C
			}
		case <-heartbeat:
			if ind != nil {
				_ = ind.TypingStarted(ctx, room)
			}
		}
	}
}
