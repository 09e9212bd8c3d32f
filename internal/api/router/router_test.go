package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hotel-concierge-platform/internal/http/handlers"
	"github.com/wolfman30/hotel-concierge-platform/internal/observability/metrics"
	"github.com/wolfman30/hotel-concierge-platform/internal/push"
	"github.com/wolfman30/hotel-concierge-platform/internal/session"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

type stubService struct {
	received int
}

func (s *stubService) OpenSession(_ context.Context, sess session.Session) (*session.Session, error) {
	sess.ID = "s1"
	return &sess, nil
}

func (s *stubService) Receive(_ context.Context, id string, turn session.Turn) (session.Turn, error) {
	s.received++
	turn.SessionID = id
	return turn, nil
}

func (s *stubService) Scheduled(string) map[string]time.Time { return nil }

func (s *stubService) GetSession(_ context.Context, id string) (*session.Session, error) {
	return &session.Session{ID: id, HotelID: "h1", Status: session.StatusOpen}, nil
}

func newTestRouter(t *testing.T, svc *stubService, ready func(*http.Request) error) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewOrchestratorMetrics(reg)
	m.ObserveInbound("guest", "scheduled")

	return New(&Config{
		Logger:             logging.Discard(),
		Sessions:           handlers.NewSessionHandler(svc, svc, logging.Discard()),
		PushHandler:        push.NewHub(nil, logging.Discard()),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		StaffSecret:        "secret",
		CORSAllowedOrigins: []string{"https://casaazul.mx"},
		InboundCooldown:    time.Hour,
		Ready:              ready,
	})
}

func TestRouterHealthEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubService{}, func(*http.Request) error { return errors.New("redis down") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis down")
}

func TestRouterMetrics(t *testing.T) {
	r := newTestRouter(t, &stubService{}, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "concierge_")
}

func TestRouterMessageFallbackIsRateLimited(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(t, svc, nil)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages", strings.NewReader(`{"text":"hello"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 3, svc.received)
}

func TestRouterStaffRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, &stubService{}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := push.IssueStaffToken("secret", push.StaffClaims{Email: "marco@casaazul.mx", HotelID: "h1"}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterOpenSessionWithCORS(t *testing.T) {
	r := newTestRouter(t, &stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"hotel_id":"h1"}`))
	req.Header.Set("Origin", "https://casaazul.mx")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://casaazul.mx", rec.Header().Get("Access-Control-Allow-Origin"))
}
