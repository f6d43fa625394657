package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/vetclinic/vetclinic/internal/config"
	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/domain/pet"
	"github.com/vetclinic/vetclinic/internal/domain/profile"
	"github.com/vetclinic/vetclinic/internal/platform/assistant"
	"github.com/vetclinic/vetclinic/internal/platform/auth"
	"github.com/vetclinic/vetclinic/internal/platform/dashboard"
	"github.com/vetclinic/vetclinic/internal/platform/db"
	"github.com/vetclinic/vetclinic/internal/platform/kvstore"
	"github.com/vetclinic/vetclinic/internal/platform/middleware"
	"github.com/vetclinic/vetclinic/internal/platform/notification"
	"github.com/vetclinic/vetclinic/internal/platform/reminder"
	"github.com/vetclinic/vetclinic/internal/platform/telemetry"
	"github.com/vetclinic/vetclinic/internal/platform/websocket"
)

type app struct {
	echo   *echo.Echo
	poller *reminder.Poller
	hub    *websocket.Hub
	pool   *pgxpool.Pool
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

type repositories struct {
	appointments appointment.Repository
	pets         pet.Repository
	profiles     profile.Repository
}

// openRepositories picks the storage backend. The KV backends keep each
// collection as one JSON document; postgres gets one table per collection.
func openRepositories(ctx context.Context, cfg *config.Config, loc *time.Location) (repositories, *pgxpool.Pool, error) {
	var repos repositories

	if cfg.StoreBackend == config.BackendPostgres {
		pool, err := db.NewPool(ctx, db.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return repos, nil, err
		}
		repos.appointments = appointment.NewRepoPG(pool, loc)
		repos.pets = pet.NewRepoPG(pool, loc)
		repos.profiles = profile.NewRepoPG(pool)
		return repos, pool, nil
	}

	var store kvstore.Store = kvstore.NewMemory()
	if cfg.StoreBackend == config.BackendFile {
		f, err := kvstore.NewFile(cfg.StoreDir)
		if err != nil {
			return repos, nil, err
		}
		store = f
	}

	var err error
	if repos.appointments, err = appointment.NewRepoKV(ctx, store, loc); err != nil {
		return repos, nil, fmt.Errorf("load appointments: %w", err)
	}
	if repos.pets, err = pet.NewRepoKV(ctx, store, loc); err != nil {
		return repos, nil, fmt.Errorf("load pets: %w", err)
	}
	if repos.profiles, err = profile.NewRepoKV(ctx, store); err != nil {
		return repos, nil, fmt.Errorf("load profiles: %w", err)
	}
	return repos, nil, nil
}

func newSenders(cfg *config.Config, logger zerolog.Logger) (notification.EmailSender, notification.SMSSender) {
	fallback := notification.LogSender{Logger: logger}
	var email notification.EmailSender = fallback
	var sms notification.SMSSender = fallback
	if cfg.EmailConfigured() {
		email = notification.NewHTTPEmailSender(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
	} else {
		logger.Warn().Msg("EMAIL_API_URL/EMAIL_API_KEY not set, emails are only logged")
	}
	if cfg.SMSConfigured() {
		sms = notification.NewTwilioSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		logger.Warn().Msg("Twilio not configured, SMS reminders are only logged")
	}
	return email, sms
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	repos, pool, err := openRepositories(ctx, cfg, loc)
	if err != nil {
		return nil, err
	}
	a := &app{pool: pool}

	tp := telemetry.NewProvider(telemetry.Config{ServiceName: "vetclinic", Environment: cfg.Env, Enabled: cfg.MetricsEnabled})
	if err := tp.Register(append(notification.Collectors(), reminder.Collectors()...)...); err != nil {
		a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if pool != nil {
		if err := tp.RegisterPool(func() telemetry.PoolStats { return pool.Stat() }); err != nil {
			a.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}

	apptSvc := appointment.NewService(repos.appointments, loc)
	petSvc := pet.NewService(repos.pets, loc)
	profileSvc := profile.NewService(repos.profiles)

	emailSender, smsSender := newSenders(cfg, logger)
	notifications := notification.NewManager(emailSender, smsSender, notification.NewTemplateEngine(), logger)

	a.hub = websocket.NewHub(logger)
	feed := reminder.NewFeed()
	a.poller = reminder.NewPoller(reminder.PollerConfig{
		Appointments: apptSvc,
		Pets:         petSvc,
		Feed:         feed,
		Publisher:    a.hub,
		Sender:       notifications,
		Logger:       logger.With().Str("component", "reminder").Logger(),
		Location:     loc,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.APIHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, assistant.KeyHeader},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(tp.MetricsMiddleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "backend": cfg.StoreBackend})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	if tp.Enabled() {
		e.GET("/metrics", tp.Handler())
	}

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("development mode: identity is taken from X-Dev-User / X-Dev-Role headers")
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSecret),
		})
	}
	api := e.Group("/api/v1", authMW)

	appointment.NewHandler(apptSvc, notification.NewBookingConfirmer(notifications), logger).RegisterRoutes(api)
	pet.NewHandler(petSvc).RegisterRoutes(api)
	profile.NewHandler(profileSvc).RegisterRoutes(api)
	reminder.NewHandler(apptSvc, petSvc, feed, loc).RegisterRoutes(api)
	dashboard.NewHandler(apptSvc, petSvc, profileSvc, loc).RegisterRoutes(api)
	notification.NewHandler(notifications).RegisterRoutes(api)
	assistant.NewHandler(assistant.NewClient(cfg.AssistantAPIURL, cfg.AssistantModel), cfg.AssistantRPM, logger).RegisterRoutes(api)
	websocket.NewHandler(a.hub, cfg.CORSOrigins).RegisterRoutes(api)

	a.echo = e
	return a, nil
}
