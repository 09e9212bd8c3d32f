package reservations

import (
	"math"
	"strings"
)

// RoomGroup is a room selection as the guest states it: quantity rooms of one type.
type RoomGroup struct {
	RoomType     string    `json:"room_type"`
	Quantity     int       `json:"quantity"`
	Guests       int       `json:"guests,omitempty"`
	NightlyRates []float64 `json:"nightly_rates,omitempty"`
}

// Charges are the money figures attached to a new reservation.
type Charges struct {
	Total       float64 `json:"total"`
	Commission  float64 `json:"commission"`
	OperatorNet float64 `json:"operator_net"`
	Deposit     float64 `json:"deposit"`
}

// FlattenRooms expands grouped selections into one entry per physical room.
// A missing or non-positive quantity counts as one room.
func FlattenRooms(groups []RoomGroup) []Room {
	var rooms []Room
	for _, g := range groups {
		qty := g.Quantity
		if qty <= 0 {
			qty = 1
		}
		for i := 0; i < qty; i++ {
			rates := make([]float64, len(g.NightlyRates))
			copy(rates, g.NightlyRates)
			rooms = append(rooms, Room{
				RoomType:     strings.TrimSpace(g.RoomType),
				Guests:       g.Guests,
				NightlyRates: rates,
			})
		}
	}
	return rooms
}

// ComputeCharges sums every night of every room. Commission is taken at
// commissionRate, the operator keeps the rest, and the deposit is the first
// night of each room.
func ComputeCharges(rooms []Room, commissionRate float64) Charges {
	var c Charges
	for _, r := range rooms {
		for i, rate := range r.NightlyRates {
			c.Total += rate
			if i == 0 {
				c.Deposit += rate
			}
		}
	}
	c.Total = roundCents(c.Total)
	c.Commission = roundCents(c.Total * commissionRate)
	c.OperatorNet = roundCents(c.Total - c.Commission)
	c.Deposit = roundCents(c.Deposit)
	return c
}

var cancelStatuses = map[string]struct{}{
	"cancel":             {},
	"cancelled":          {},
	"canceled":           {},
	"cancellation":       {},
	"cancelled_by_guest": {},
	"canceled_by_guest":  {},
	"cancelled_by_hotel": {},
	"canceled_by_hotel":  {},
	"void":               {},
	"voided":             {},
}

// IsCancelStatus reports whether status asks for a cancellation.
func IsCancelStatus(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if _, ok := cancelStatuses[s]; ok {
		return true
	}
	return strings.HasPrefix(s, "cancel")
}

// NormalizeLookup reduces a reservation to the fields the assistant may quote back.
func NormalizeLookup(r *Reservation) map[string]any {
	if r == nil {
		return nil
	}
	out := map[string]any{
		"reservation_id":    r.ID,
		"confirmation_code": r.Confirmation,
		"status":            strings.ToLower(r.Status),
		"guest_name":        r.GuestName,
		"check_in":          r.CheckIn,
		"check_out":         r.CheckOut,
		"rooms":             len(r.Rooms),
		"total":             r.Total,
	}
	if r.HotelName != "" {
		out["hotel"] = r.HotelName
	} else if r.HotelID != "" {
		out["hotel"] = r.HotelID
	}
	if r.Currency != "" {
		out["currency"] = r.Currency
	}
	if r.PaymentStatus != "" {
		out["payment_status"] = r.PaymentStatus
	}
	if len(r.Rooms) > 0 {
		types := make([]string, 0, len(r.Rooms))
		for _, room := range r.Rooms {
			types = append(types, room.RoomType)
		}
		out["room_types"] = types
	}
	return out
}

// HasFullName applies the full-name heuristic: at least two tokens of two or
// more characters.
func HasFullName(name string) bool {
	count := 0
	for _, tok := range strings.Fields(name) {
		if len([]rune(tok)) >= 2 {
			count++
		}
	}
	return count >= 2
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
