package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/hotel-concierge-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/hotel-concierge-platform/internal/http/middleware"
	"github.com/wolfman30/hotel-concierge-platform/internal/ratelimit"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sessions           *handlers.SessionHandler
	Hotels             *handlers.HotelHandler
	PushHandler        http.Handler
	MetricsHandler     http.Handler
	StaffSecret        string
	CORSAllowedOrigins []string
	// InboundCooldown spaces HTTP fallback messages per session. Zero disables it.
	InboundCooldown time.Duration
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(r *http.Request) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(req); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.PushHandler != nil {
		r.Handle("/ws", cfg.PushHandler)
	}

	if cfg.Sessions != nil {
		inbound := ratelimit.NewGate(cfg.InboundCooldown, 3)
		r.Route("/api/sessions", func(api chi.Router) {
			api.Use(middleware.Compress(5))
			api.Post("/", cfg.Sessions.OpenSession)
			api.Route("/{sessionID}", func(s chi.Router) {
				s.With(
					httpmiddleware.StaffJWT(cfg.StaffSecret, false),
					httpmiddleware.RateLimit(inbound, httpmiddleware.KeyByURLParam("sessionID")),
				).Post("/messages", cfg.Sessions.PostMessage)

				s.Group(func(staff chi.Router) {
					staff.Use(httpmiddleware.StaffJWT(cfg.StaffSecret, true))
					staff.Get("/", cfg.Sessions.GetSession)
					staff.Get("/schedule", cfg.Sessions.GetSchedule)
				})
			})
		})
	}

	if cfg.Hotels != nil {
		r.Route("/api/hotels/{hotelID}", func(api chi.Router) {
			api.Use(httpmiddleware.StaffJWT(cfg.StaffSecret, true))
			api.Get("/settings", cfg.Hotels.GetSettings)
			api.Put("/settings", cfg.Hotels.PutSettings)
			api.Put("/auto-reply", cfg.Hotels.PutAutoReply)
		})
	}

	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
