package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRates reads hotels and nightly room rates from Postgres.
type PostgresRates struct {
	db rowQuerier
}

func NewPostgresRates(pool *pgxpool.Pool) *PostgresRates {
	if pool == nil {
		panic("pricing: pgx pool required")
	}
	return &PostgresRates{db: pool}
}

func newPostgresRatesWithQuerier(db rowQuerier) *PostgresRates {
	if db == nil {
		panic("pricing: querier required")
	}
	return &PostgresRates{db: db}
}

// FindHotel matches by id first, then by exact case-insensitive name.
func (p *PostgresRates) FindHotel(ctx context.Context, ref string) (*Hotel, error) {
	query := `
		SELECT id, name, commission_rate, currency
		FROM hotels
		WHERE id = $1 OR lower(name) = lower($1)
		ORDER BY (id = $1) DESC
		LIMIT 1
	`
	var h Hotel
	if err := p.db.QueryRow(ctx, query, ref).Scan(&h.ID, &h.Name, &h.CommissionRate, &h.Currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHotelNotFound
		}
		return nil, fmt.Errorf("pricing: find hotel: %w", err)
	}
	return &h, nil
}

// NightlyRate returns the price for the room type on date, or zero when the
// night is not sellable.
func (p *PostgresRates) NightlyRate(ctx context.Context, hotelID, roomType string, date time.Time) (float64, error) {
	query := `
		SELECT COALESCE(MIN(price), 0)
		FROM room_rates
		WHERE hotel_id = $1
		  AND ($2 = '' OR lower(room_type) = lower($2))
		  AND stay_date = $3
		  AND price > 0
	`
	var price float64
	if err := p.db.QueryRow(ctx, query, hotelID, roomType, dateOnly(date)).Scan(&price); err != nil {
		return 0, fmt.Errorf("pricing: nightly rate: %w", err)
	}
	return price, nil
}
