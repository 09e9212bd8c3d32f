package assistant

import "github.com/wolfman30/hotel-concierge-platform/internal/llm"

const (
	ToolGetPricing        = "get_pricing"
	ToolCreateReservation = "create_reservation"
	ToolFindReservation   = "find_reservation"
	ToolUpdateReservation = "update_reservation"
)

var roomsSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"room_type": map[string]any{"type": "string", "description": "Room type name, e.g. deluxe or suite. Empty for the cheapest room."},
			"quantity":  map[string]any{"type": "integer", "minimum": 1},
			"guests":    map[string]any{"type": "integer", "minimum": 1},
		},
	},
}

// Definitions returns the tools offered to the model.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolGetPricing,
			Description: "Quote nightly prices for a stay. Reports blocked dates and the nearest open window of the same length when the stay is not bookable.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"hotel":     map[string]any{"type": "string", "description": "Hotel id or exact name. Defaults to the hotel of this conversation."},
					"check_in":  map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"check_out": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"rooms":     roomsSchema,
				},
				"required": []string{"check_in", "check_out"},
			},
		},
		{
			Name:        ToolCreateReservation,
			Description: "Create a reservation. Only call after the guest has explicitly confirmed the booking and given their full name.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"hotel":       map[string]any{"type": "string"},
					"guest_name":  map[string]any{"type": "string", "description": "Guest first and last name"},
					"guest_email": map[string]any{"type": "string"},
					"guest_phone": map[string]any{"type": "string"},
					"check_in":    map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"check_out":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"rooms":       roomsSchema,
					"notes":       map[string]any{"type": "string"},
				},
				"required": []string{"guest_name", "check_in", "check_out", "rooms"},
			},
		},
		{
			Name:        ToolFindReservation,
			Description: "Look up an existing reservation by its confirmation code.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"confirmation_code": map[string]any{"type": "string"},
				},
				"required": []string{"confirmation_code"},
			},
		},
		{
			Name:        ToolUpdateReservation,
			Description: "Change or cancel an existing reservation. Cancelling requires the guest's explicit confirmation. Any extra fields are forwarded to the reservation system.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reservation_id":    map[string]any{"type": "string"},
					"confirmation_code": map[string]any{"type": "string"},
					"status":            map[string]any{"type": "string", "description": "New status, e.g. cancelled"},
					"check_in":          map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"check_out":         map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				},
			},
		},
	}
}

type roomArg struct {
	RoomType string `json:"room_type"`
	Quantity int    `json:"quantity"`
	Guests   int    `json:"guests"`
}

type pricingArgs struct {
	Hotel    string    `json:"hotel"`
	CheckIn  string    `json:"check_in"`
	CheckOut string    `json:"check_out"`
	Rooms    []roomArg `json:"rooms"`
}

type createArgs struct {
	Hotel      string    `json:"hotel"`
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email"`
	GuestPhone string    `json:"guest_phone"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Rooms      []roomArg `json:"rooms"`
	Notes      string    `json:"notes"`
}

type findArgs struct {
	ConfirmationCode string `json:"confirmation_code"`
}
