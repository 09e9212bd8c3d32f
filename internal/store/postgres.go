// Package store persists sessions and their turns in Postgres and exposes the
// session-opened notification feed.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

var ErrSessionNotFound = errors.New("store: session not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the conversation store. Turns are append-only.
type PostgresStore struct {
	db     querier
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *logging.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *logging.Logger) *PostgresStore {
	if pool == nil {
		panic("store: pgx pool required")
	}
	s := newPostgresStoreWithQuerier(pool, logger)
	s.pool = pool
	return s
}

func newPostgresStoreWithQuerier(db querier, logger *logging.Logger) *PostgresStore {
	if db == nil {
		panic("store: querier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("hotel.internal.store"),
		logger: logger,
	}
}

// OpenSession inserts a session row. Re-opening an existing id is a no-op.
// The insert fires the session_opened notification.
func (s *PostgresStore) OpenSession(ctx context.Context, sess session.Session) (*session.Session, error) {
	if strings.TrimSpace(sess.HotelID) == "" {
		return nil, errors.New("store: open session: hotel id required")
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	sess.Language = session.NormalizeLanguage(sess.Language)
	sess.Status = session.StatusOpen

	ctx, span := s.tracer.Start(ctx, "store.open_session", trace.WithAttributes(attribute.String("session_id", sess.ID)))
	defer span.End()

	query := `
		INSERT INTO sessions (id, hotel_id, language, guest_name, guest_email, topic, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, sess.ID, sess.HotelID, sess.Language, sess.GuestName, sess.GuestEmail, sess.Topic, sess.Status, sess.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: open session: %w", err)
	}
	return &sess, nil
}

// AppendTurn persists a turn, assigning an id and timestamp when missing.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn session.Turn) (session.Turn, error) {
	if turn.SessionID == "" {
		return turn, errors.New("store: append turn: session id required")
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	ctx, span := s.tracer.Start(ctx, "store.append_turn", trace.WithAttributes(
		attribute.String("session_id", turn.SessionID),
		attribute.String("role", string(turn.Role)),
	))
	defer span.End()

	query := `
		INSERT INTO turns (id, session_id, role, author_name, author_email, body, internal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, turn.ID, turn.SessionID, string(turn.Role), turn.AuthorName, turn.AuthorEmail, turn.Text, turn.Internal, turn.Timestamp)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return turn, ErrSessionNotFound
		}
		return turn, fmt.Errorf("store: append turn: %w", err)
	}
	return turn, nil
}

// GetSession loads a session with its turns ordered by timestamp.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	ctx, span := s.tracer.Start(ctx, "store.get_session", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	sess := &session.Session{}
	var personaName, personaLang string
	err := s.db.QueryRow(ctx, `
		SELECT id, hotel_id, language, guest_name, guest_email, topic, status,
		       COALESCE(persona_name, ''), COALESCE(persona_language, ''), created_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(&sess.ID, &sess.HotelID, &sess.Language, &sess.GuestName, &sess.GuestEmail,
		&sess.Topic, &sess.Status, &personaName, &personaLang, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	if personaName != "" {
		sess.Persona = &session.Persona{DisplayName: personaName, Language: personaLang}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, role, author_name, author_email, body, internal, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t session.Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.AuthorName, &t.AuthorEmail, &t.Text, &t.Internal, &t.Timestamp); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		t.Role = session.Role(role)
		sess.Turns = append(sess.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	span.SetAttributes(attribute.Int("turns", len(sess.Turns)))
	return sess, nil
}

// SavePersona records the persona assigned to a session. An existing persona
// is kept.
func (s *PostgresStore) SavePersona(ctx context.Context, sessionID string, persona session.Persona) error {
	if persona.IsZero() {
		return errors.New("store: save persona: display name required")
	}
	ctx, span := s.tracer.Start(ctx, "store.save_persona", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	_, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET persona_name = $2, persona_language = $3
		WHERE id = $1 AND COALESCE(persona_name, '') = ''
	`, sessionID, persona.DisplayName, persona.Language)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: save persona: %w", err)
	}
	return nil
}

// CloseSession marks the session closed. Turns are never removed.
func (s *PostgresStore) CloseSession(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "store.close_session", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	tag, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET status = $2, closed_at = now()
		WHERE id = $1
	`, sessionID, session.StatusClosed)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
