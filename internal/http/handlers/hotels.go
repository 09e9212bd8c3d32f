package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/hotel-concierge-platform/internal/hotel"
	httpmiddleware "github.com/wolfman30/hotel-concierge-platform/internal/http/middleware"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// HotelSettingsStore reads and writes per-hotel settings.
type HotelSettingsStore interface {
	Get(ctx context.Context, hotelID string) (*hotel.Config, error)
	Set(ctx context.Context, cfg *hotel.Config) error
	SetAutoReply(ctx context.Context, hotelID string, enabled bool) error
}

// HotelHandler lets staff manage the settings the orchestrator consults.
type HotelHandler struct {
	store  HotelSettingsStore
	logger *logging.Logger
}

func NewHotelHandler(store HotelSettingsStore, logger *logging.Logger) *HotelHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HotelHandler{store: store, logger: logger}
}

// GetSettings handles GET /api/hotels/{hotelID}/settings.
func (h *HotelHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	cfg, err := h.store.Get(r.Context(), hotelID)
	if err != nil {
		h.logger.Error("handlers: load hotel settings failed", "hotel_id", hotelID, "error", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PutSettings handles PUT /api/hotels/{hotelID}/settings. The body replaces
// the stored settings; the hotel id always comes from the path.
func (h *HotelHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var cfg hotel.Config
	if err := decodeJSON(w, r, &cfg); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		http.Error(w, "commission_rate must be in [0, 1)", http.StatusBadRequest)
		return
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			http.Error(w, "unknown timezone", http.StatusBadRequest)
			return
		}
	}
	cfg.HotelID = hotelID
	if err := h.store.Set(r.Context(), &cfg); err != nil {
		h.logger.Error("handlers: save hotel settings failed", "hotel_id", hotelID, "error", err)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type autoReplyRequest struct {
	Enabled *bool `json:"enabled"`
}

// PutAutoReply handles PUT /api/hotels/{hotelID}/auto-reply.
func (h *HotelHandler) PutAutoReply(w http.ResponseWriter, r *http.Request) {
	hotelID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req autoReplyRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		http.Error(w, "enabled required", http.StatusBadRequest)
		return
	}
	if err := h.store.SetAutoReply(r.Context(), hotelID, *req.Enabled); err != nil {
		h.logger.Error("handlers: toggle auto reply failed", "hotel_id", hotelID, "error", err)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	claims, _ := httpmiddleware.StaffClaimsFromContext(r.Context())
	h.logger.Info("auto reply toggled", "hotel_id", hotelID, "enabled", *req.Enabled, "staff", claims.Email)
	writeJSON(w, http.StatusOK, map[string]any{"hotel_id": hotelID, "auto_reply_enabled": *req.Enabled})
}

func (h *HotelHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	hotelID := strings.TrimSpace(chi.URLParam(r, "hotelID"))
	if hotelID == "" {
		http.Error(w, "hotel id required", http.StatusBadRequest)
		return "", false
	}
	claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "staff authentication required", http.StatusUnauthorized)
		return "", false
	}
	if !httpmiddleware.CanManageHotel(claims, hotelID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return hotelID, true
}
