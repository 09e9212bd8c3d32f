// Package pricing resolves nightly room prices for a stay and, when the stay
// is blocked, suggests the nearest bookable window of the same length.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

var (
	ErrHotelNotFound = errors.New("pricing: hotel not found")
	ErrInvalidDates  = errors.New("pricing: check-out must be after check-in")
)

// Hotel is the subset of hotel data pricing needs.
type Hotel struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	CommissionRate float64 `json:"commission_rate"`
	Currency       string  `json:"currency"`
}

// Directory finds a hotel by id or by exact, case-insensitive name.
type Directory interface {
	FindHotel(ctx context.Context, ref string) (*Hotel, error)
}

// RateSource returns the nightly price of a room type; zero means the date is blocked.
// An empty room type means the cheapest room available that night.
type RateSource interface {
	NightlyRate(ctx context.Context, hotelID, roomType string, date time.Time) (float64, error)
}

// RoomRequest asks for quantity rooms of one type.
type RoomRequest struct {
	RoomType string `json:"room_type"`
	Quantity int    `json:"quantity"`
	Guests   int    `json:"guests,omitempty"`
}

// QuoteRequest describes a stay to price.
type QuoteRequest struct {
	Hotel    string
	CheckIn  time.Time
	CheckOut time.Time
	Rooms    []RoomRequest
}

// NightPrice is the per-room price of one night.
type NightPrice struct {
	Date       string  `json:"date"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
	Blocked    bool    `json:"blocked,omitempty"`
}

// RoomQuote is the breakdown for one requested room line.
type RoomQuote struct {
	RoomType   string       `json:"room_type"`
	Quantity   int          `json:"quantity"`
	Nights     []NightPrice `json:"nights"`
	Subtotal   float64      `json:"subtotal"`
	Commission float64      `json:"commission"`
}

// Alternative is the suggested window returned with a blocked quote.
type Alternative struct {
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	OffsetDays int    `json:"offset_days"`
	Direction  string `json:"direction"`
}

// Quote is the priced stay.
type Quote struct {
	HotelID      string       `json:"hotel_id"`
	HotelName    string       `json:"hotel_name"`
	Currency     string       `json:"currency,omitempty"`
	CheckIn      string       `json:"check_in"`
	CheckOut     string       `json:"check_out"`
	Nights       int          `json:"nights"`
	Rooms        []RoomQuote  `json:"rooms"`
	Total        float64      `json:"total"`
	Commission   float64      `json:"commission"`
	Blocked      bool         `json:"blocked"`
	BlockedDates []string     `json:"blocked_dates,omitempty"`
	Alternative  *Alternative `json:"alternative,omitempty"`

	CommissionRate float64 `json:"-"`
}

// Service prices stays.
type Service struct {
	directory  Directory
	rates      RateSource
	searchDays int
	now        func() time.Time
	logger     *logging.Logger
}

// Option customizes the pricing service.
type Option func(*Service)

// WithSearchDays sets how far the nearest-window search looks either side.
func WithSearchDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.searchDays = days
		}
	}
}

// WithClock overrides the clock used to bound backward searches.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a pricing service.
func NewService(directory Directory, rates RateSource, logger *logging.Logger, opts ...Option) *Service {
	if directory == nil || rates == nil {
		panic("pricing: directory and rate source are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		directory:  directory,
		rates:      rates,
		searchDays: DefaultSearchDays,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nights returns the number of nights between two dates.
func Nights(checkIn, checkOut time.Time) int {
	return int(dateOnly(checkOut).Sub(dateOnly(checkIn)).Hours() / 24)
}

// Quote prices the requested stay. A date is blocked when any requested room
// has no price for it; blocked quotes carry the nearest open window if any.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ref := strings.TrimSpace(req.Hotel)
	if ref == "" {
		return nil, ErrHotelNotFound
	}
	hotel, err := s.directory.FindHotel(ctx, ref)
	if err != nil {
		return nil, err
	}
	if hotel == nil {
		return nil, ErrHotelNotFound
	}

	checkIn, checkOut := dateOnly(req.CheckIn), dateOnly(req.CheckOut)
	nights := Nights(checkIn, checkOut)
	if nights <= 0 {
		return nil, ErrInvalidDates
	}
	rooms := normalizeRooms(req.Rooms)
	cache := newRateCache(s.rates, hotel.ID)

	quote := &Quote{
		HotelID:   hotel.ID,
		HotelName: hotel.Name,
		Currency:  hotel.Currency,
		CheckIn:   checkIn.Format(time.DateOnly),
		CheckOut:  checkOut.Format(time.DateOnly),
		Nights:    nights,

		CommissionRate: hotel.CommissionRate,
	}
	blocked := make(map[string]struct{})
	for _, room := range rooms {
		rq := RoomQuote{RoomType: room.RoomType, Quantity: room.Quantity}
		for i := 0; i < nights; i++ {
			date := checkIn.AddDate(0, 0, i)
			price, err := cache.rate(ctx, room.RoomType, date)
			if err != nil {
				return nil, fmt.Errorf("pricing: nightly rate: %w", err)
			}
			night := NightPrice{
				Date:       date.Format(time.DateOnly),
				Price:      roundCents(price),
				Commission: roundCents(price * hotel.CommissionRate),
			}
			if price <= 0 {
				night.Blocked = true
				blocked[night.Date] = struct{}{}
			}
			rq.Nights = append(rq.Nights, night)
			rq.Subtotal += night.Price * float64(room.Quantity)
			rq.Commission += night.Commission * float64(room.Quantity)
		}
		rq.Subtotal = roundCents(rq.Subtotal)
		rq.Commission = roundCents(rq.Commission)
		quote.Total += rq.Subtotal
		quote.Commission += rq.Commission
		quote.Rooms = append(quote.Rooms, rq)
	}
	quote.Total = roundCents(quote.Total)
	quote.Commission = roundCents(quote.Commission)

	if len(blocked) == 0 {
		return quote, nil
	}
	quote.Blocked = true
	for i := 0; i < nights; i++ {
		d := checkIn.AddDate(0, 0, i).Format(time.DateOnly)
		if _, ok := blocked[d]; ok {
			quote.BlockedDates = append(quote.BlockedDates, d)
		}
	}

	open := func(ctx context.Context, start time.Time) (bool, error) {
		for _, room := range rooms {
			for i := 0; i < nights; i++ {
				price, err := cache.rate(ctx, room.RoomType, start.AddDate(0, 0, i))
				if err != nil {
					return false, err
				}
				if price <= 0 {
					return false, nil
				}
			}
		}
		return true, nil
	}
	window, err := FindNearestWindow(ctx, checkIn, nights, s.searchDays, s.now(), open)
	if err != nil {
		s.logger.Warn("pricing: nearest window search failed", "hotel_id", hotel.ID, "error", err)
		return quote, nil
	}
	if window != nil {
		quote.Alternative = &Alternative{
			CheckIn:    window.CheckIn.Format(time.DateOnly),
			CheckOut:   window.CheckOut.Format(time.DateOnly),
			OffsetDays: window.OffsetDays,
			Direction:  window.Direction,
		}
	}
	return quote, nil
}

func normalizeRooms(rooms []RoomRequest) []RoomRequest {
	out := make([]RoomRequest, 0, len(rooms))
	for _, r := range rooms {
		r.RoomType = strings.TrimSpace(r.RoomType)
		if r.Quantity <= 0 {
			r.Quantity = 1
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		out = append(out, RoomRequest{Quantity: 1})
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// rateCache memoizes lookups for one quote; the window search probes the
// same dates from two goroutines.
type rateCache struct {
	source  RateSource
	hotelID string
	mu      sync.Mutex
	values  map[string]float64
}

func newRateCache(source RateSource, hotelID string) *rateCache {
	return &rateCache{source: source, hotelID: hotelID, values: make(map[string]float64)}
}

func (c *rateCache) rate(ctx context.Context, roomType string, date time.Time) (float64, error) {
	key := strings.ToLower(roomType) + "|" + date.Format(time.DateOnly)
	c.mu.Lock()
	if v, ok := c.values[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.source.NightlyRate(ctx, c.hotelID, roomType, date)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
	return v, nil
}
