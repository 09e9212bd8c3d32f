package reservations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

func TestClientCreate(t *testing.T) {
	var got CreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reservations", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r-1","confirmation_code":"HX42","status":"pending","payment_link":"https://pay.example/HX42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key-1", logging.Discard())
	res, err := c.Create(context.Background(), CreateRequest{
		HotelID:   "h1",
		GuestName: "Ana Souza",
		CheckIn:   "2026-06-10",
		CheckOut:  "2026-06-12",
		Rooms:     []Room{{RoomType: "deluxe", NightlyRates: []float64{100, 100}}},
		Total:     200,
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", res.ReservationID)
	assert.Equal(t, "HX42", res.Confirmation)
	assert.Equal(t, "https://pay.example/HX42", res.PaymentLink)
	assert.Equal(t, "Ana Souza", got.GuestName)
	assert.Len(t, got.Rooms, 1)
}

func TestClientAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error string", `{"error":"room sold out"}`, "room sold out"},
		{"nested error", `{"error":{"message":"invalid dates"}}`, "invalid dates"},
		{"message field", `{"message":"bad request"}`, "bad request"},
		{"plain text", `upstream exploded`, "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "", logging.Discard())
			_, err := c.Create(context.Background(), CreateRequest{HotelID: "h1"})
			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("confirmation_code") {
		case "HX42":
			_, _ = w.Write([]byte(`[{"id":"r-1","confirmation_code":"HX42","status":"Confirmed","guest_name":"Ana Souza"}]`))
		case "GONE":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", logging.Discard())
	ctx := context.Background()

	res, err := c.Lookup(ctx, " HX42 ")
	require.NoError(t, err)
	assert.Equal(t, "r-1", res.ID)

	_, err = c.Lookup(ctx, "GONE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Lookup(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Lookup(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientUpdatePassesPatchThrough(t *testing.T) {
	var patch map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/reservations/r-1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		_, _ = w.Write([]byte(`{"id":"r-1","status":"cancelled"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", logging.Discard())
	res, err := c.Update(context.Background(), "r-1", map[string]any{"status": "cancelled", "room_upgrade": "suite"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Status)
	assert.Equal(t, "suite", patch["room_upgrade"])

	_, err = c.Update(context.Background(), " ", nil)
	assert.Error(t, err)
}

func TestClientMissingBaseURL(t *testing.T) {
	c := NewClient("", "", nil)
	_, err := c.Create(context.Background(), CreateRequest{})
	assert.Error(t, err)
}

func TestWithTimeout(t *testing.T) {
	c := NewClient("http://api.example", "k", nil, WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	c = NewClient("http://api.example", "k", nil, WithTimeout(0))
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
}
