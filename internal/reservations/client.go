// Package reservations talks to the external reservation API and holds the
// room and charge arithmetic used when a reservation is created.
package reservations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

const defaultTimeout = 30 * time.Second

var ErrNotFound = errors.New("reservations: not found")

// APIError is a non-2xx answer from the reservation API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reservations: status %d: %s", e.Status, e.Message)
}

// Room is one physical room on a reservation.
type Room struct {
	RoomType     string    `json:"room_type"`
	Guests       int       `json:"guests,omitempty"`
	NightlyRates []float64 `json:"nightly_rates"`
}

// CreateRequest is the payload submitted to the reservation API.
type CreateRequest struct {
	HotelID     string  `json:"hotel_id"`
	SessionID   string  `json:"session_id,omitempty"`
	GuestName   string  `json:"guest_name"`
	GuestEmail  string  `json:"guest_email,omitempty"`
	GuestPhone  string  `json:"guest_phone,omitempty"`
	CheckIn     string  `json:"check_in"`
	CheckOut    string  `json:"check_out"`
	Rooms       []Room  `json:"rooms"`
	Currency    string  `json:"currency,omitempty"`
	Total       float64 `json:"total"`
	Commission  float64 `json:"commission"`
	OperatorNet float64 `json:"operator_net"`
	Deposit     float64 `json:"deposit"`
	Notes       string  `json:"notes,omitempty"`
}

// CreateResult is what the API returns for a new reservation.
type CreateResult struct {
	ReservationID string `json:"id"`
	Confirmation  string `json:"confirmation_code"`
	Status        string `json:"status"`
	PaymentLink   string `json:"payment_link,omitempty"`
}

// Reservation is a stored reservation as the API reports it.
type Reservation struct {
	ID            string  `json:"id"`
	Confirmation  string  `json:"confirmation_code"`
	Status        string  `json:"status"`
	HotelID       string  `json:"hotel_id"`
	HotelName     string  `json:"hotel_name,omitempty"`
	GuestName     string  `json:"guest_name"`
	GuestEmail    string  `json:"guest_email,omitempty"`
	CheckIn       string  `json:"check_in"`
	CheckOut      string  `json:"check_out"`
	Rooms         []Room  `json:"rooms,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Total         float64 `json:"total"`
	Deposit       float64 `json:"deposit,omitempty"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	PaymentLink   string  `json:"payment_link,omitempty"`
}

// Client is a small JSON client for the reservation API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a reservation API client.
func NewClient(baseURL, apiKey string, logger *logging.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create submits a new reservation.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	var out CreateResult
	if err := c.do(ctx, http.MethodPost, "/reservations", req, &out); err != nil {
		return nil, err
	}
	c.logger.Info("reservations: created", "reservation_id", out.ReservationID, "hotel_id", req.HotelID, "rooms", len(req.Rooms))
	return &out, nil
}

// Update applies patch to reservation id. Fields are sent as-is.
func (c *Client) Update(ctx context.Context, id string, patch map[string]any) (*Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("reservations: missing reservation id")
	}
	var out Reservation
	if err := c.do(ctx, http.MethodPatch, "/reservations/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lookup finds a reservation by confirmation code.
func (c *Client) Lookup(ctx context.Context, code string) (*Reservation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}
	var out []Reservation
	if err := c.do(ctx, http.MethodGet, "/reservations?confirmation_code="+url.QueryEscape(code), nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("reservations: missing base url")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("reservations: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("reservations: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reservations: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reservations: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("reservations: unmarshal response: %w", err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	var env struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		switch v := env.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
		if env.Message != "" {
			return env.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}
