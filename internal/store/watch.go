package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// OpenedChannel is the Postgres NOTIFY channel fired by the sessions insert trigger.
const OpenedChannel = "session_opened"

// OpenedEvent announces a newly opened session.
type OpenedEvent struct {
	SessionID string `json:"session_id"`
	HotelID   string `json:"hotel_id"`
}

type listenConn interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context) (listenConn, error)

type watcher struct {
	connect    connectFunc
	logger     *logging.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func newWatcher(connect connectFunc, logger *logging.Logger) *watcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &watcher{
		connect:    connect,
		logger:     logger,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Watch listens for session_opened notifications on a dedicated connection
// and reconnects with backoff when it drops. The channel closes when ctx ends.
func (s *PostgresStore) Watch(ctx context.Context) <-chan OpenedEvent {
	return newWatcher(s.listen, s.logger).run(ctx)
}

func (s *PostgresStore) listen(ctx context.Context) (listenConn, error) {
	if s.pool == nil {
		return nil, errors.New("store: watch requires a pgx pool")
	}
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: acquire listen conn: %w", err)
	}
	// LISTEN state must never be returned to the pool.
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+OpenedChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("store: listen: %w", err)
	}
	return conn, nil
}

func (w *watcher) run(ctx context.Context) <-chan OpenedEvent {
	out := make(chan OpenedEvent, 64)
	go func() {
		defer close(out)
		backoff := w.minBackoff
		for ctx.Err() == nil {
			conn, err := w.connect(ctx)
			if err != nil {
				w.logger.Warn("store: watch connect failed", "error", err, "retry_in", backoff.String())
				if !sleepCtx(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff, w.maxBackoff)
				continue
			}
			w.logger.Info("store: listening for opened sessions", "channel", OpenedChannel)
			backoff = w.minBackoff
			err = w.consume(ctx, conn, out)
			_ = conn.Close(context.Background())
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("store: watch connection lost", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, w.maxBackoff)
		}
	}()
	return out
}

func (w *watcher) consume(ctx context.Context, conn listenConn, out chan<- OpenedEvent) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n == nil || n.Channel != OpenedChannel {
			continue
		}
		evt, ok := parseOpened(n.Payload)
		if !ok {
			w.logger.Warn("store: ignoring malformed notification", "payload", n.Payload)
			continue
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseOpened accepts the trigger's JSON payload or a bare session id.
func parseOpened(payload string) (OpenedEvent, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return OpenedEvent{}, false
	}
	if strings.HasPrefix(payload, "{") {
		var evt OpenedEvent
		if err := json.Unmarshal([]byte(payload), &evt); err != nil || evt.SessionID == "" {
			return OpenedEvent{}, false
		}
		return evt, true
	}
	return OpenedEvent{SessionID: payload}, true
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
