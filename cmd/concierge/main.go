package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/hotel-concierge-platform/internal/api/router"
	"github.com/wolfman30/hotel-concierge-platform/internal/app/bootstrap"
	"github.com/wolfman30/hotel-concierge-platform/internal/assistant"
	appconfig "github.com/wolfman30/hotel-concierge-platform/internal/config"
	"github.com/wolfman30/hotel-concierge-platform/internal/hotel"
	"github.com/wolfman30/hotel-concierge-platform/internal/http/handlers"
	"github.com/wolfman30/hotel-concierge-platform/internal/observability/metrics"
	"github.com/wolfman30/hotel-concierge-platform/internal/orchestrator"
	"github.com/wolfman30/hotel-concierge-platform/internal/pricing"
	"github.com/wolfman30/hotel-concierge-platform/internal/push"
	"github.com/wolfman30/hotel-concierge-platform/internal/reservations"
	"github.com/wolfman30/hotel-concierge-platform/internal/store"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hotel concierge",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("concierge stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		return errors.New("redis is required for hotel settings")
	}
	defer func() { _ = redisClient.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orchMetrics := metrics.NewOrchestratorMetrics(reg)

	sessions := store.NewPostgresStore(pool, logger)
	hotels := hotel.NewStore(redisClient)
	rates := pricing.NewPostgresRates(pool)
	pricer := pricing.NewService(rates, rates, logger)
	reservationAPI := reservations.NewClient(cfg.ReservationAPIBaseURL, cfg.ReservationAPIKey, logger,
		reservations.WithTimeout(cfg.ReservationAPITimeout))

	mailer, err := bootstrap.BuildPaymentMailer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	llmClient, model, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := assistant.NewDispatcher(pricer, reservationAPI, mailer, logger)
	replier := assistant.New(llmClient, dispatcher, logger,
		assistant.WithModel(model),
		assistant.WithMaxTokens(int32(cfg.LLMMaxTokens)),
		assistant.WithTemperature(float32(cfg.LLMTemperature)),
		assistant.WithHistoryTurns(cfg.HistoryTurns),
		assistant.WithToolRecorder(orchMetrics),
	)

	hub := push.NewHub(nil, logger,
		push.WithStaffSecret(cfg.StaffJWTSecret),
		push.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	orch := orchestrator.New(sessions, hub, replier, orchestrator.ConfigFrom(cfg), logger,
		orchestrator.WithMetrics(orchMetrics),
		orchestrator.WithHotelSettings(hotels),
	)
	hub.SetSink(orch)

	// Sessions opened by other writers arrive through LISTEN/NOTIFY.
	go func() {
		for ev := range sessions.Watch(ctx) {
			orch.HandleSessionOpened(ctx, ev.SessionID, ev.HotelID)
		}
	}()

	handler := router.New(&router.Config{
		Logger:             logger,
		Sessions:           handlers.NewSessionHandler(orch, sessions, logger),
		Hotels:             handlers.NewHotelHandler(hotels, logger),
		PushHandler:        hub,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		StaffSecret:        cfg.StaffJWTSecret,
		CORSAllowedOrigins: cfg.AllowedOrigins,
		InboundCooldown:    cfg.InboundCooldown,
		Ready: func(r *http.Request) error {
			if err := pool.Ping(r.Context()); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutting down server...")
	case err := <-serveErr:
		cancel()
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown incomplete", "error", err)
	}
	hub.Close()
	cancel()

	logger.Info("server exited")
	return nil
}
