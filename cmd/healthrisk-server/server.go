package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/healthrisk/healthrisk/internal/config"
	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/domain/emergency"
	"github.com/healthrisk/healthrisk/internal/domain/identity"
	"github.com/healthrisk/healthrisk/internal/domain/medication"
	"github.com/healthrisk/healthrisk/internal/domain/records"
	"github.com/healthrisk/healthrisk/internal/domain/risk"
	"github.com/healthrisk/healthrisk/internal/domain/scheduling"
	"github.com/healthrisk/healthrisk/internal/domain/vitals"
	"github.com/healthrisk/healthrisk/internal/platform/auth"
	"github.com/healthrisk/healthrisk/internal/platform/db"
	"github.com/healthrisk/healthrisk/internal/platform/middleware"
)

const version = "0.1.0"

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "healthrisk").Logger()
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := checkStartup(cfg); err != nil {
		logger.Fatal().Err(err).Msg("refusing to start")
	}
	if cfg.IsDev() {
		logger.Warn().
			Str("header", auth.DevUserHeader).
			Msg("development mode: requests are authenticated by header, do not use in production")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional; without it the latest assessment is always read
	// from the database.
	rdb := connectRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e := newServer(cfg, logger, pool, rdb, reg)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, risk cache disabled")
		rdb.Close()
		return nil
	}
	logger.Info().Msg("connected to redis")
	return rdb
}

type redisChecker struct{ rdb *redis.Client }

func (r redisChecker) Name() string { return "redis" }
func (r redisChecker) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// newServer builds the echo instance with middleware, health endpoints and
// every domain handler.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevUserHeader},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Health check
	checkers := []db.Checker{db.PoolChecker(pool)}
	if rdb != nil {
		checkers = append(checkers, redisChecker{rdb: rdb})
	}
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/health/ready", db.ReadinessHandler(checkers...))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	engine, err := access.NewEngine(access.DefaultPolicy())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid access policy")
	}
	guard := access.NewGuard(engine, reg)
	tx := db.NewTransactor(pool)

	// Identity
	patients := identity.NewPatientRepoPG(pool)
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		patients,
		identity.NewProfessionalRepoPG(pool),
		tx,
	)

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	apiV1.Use(db.ConnMiddleware(pool))
	apiV1.Use(auth.ActorMiddleware(identitySvc, auth.AuthSkipper))

	// Risk
	measurements := vitals.NewMeasurementRepoPG(pool)
	medicalRecords := records.NewMedicalRecordRepoPG(pool)
	assessments := risk.NewAssessmentRepoPG(pool)
	recommendations := risk.NewRecommendationRepoPG(pool)
	store := risk.NewStore(patients, measurements, medicalRecords, assessments, recommendations)

	scorer, err := risk.NewScorer(risk.DefaultTables(), risk.DefaultWeights())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring tables")
	}
	riskSvc := risk.NewService(store, store, assessments, recommendations, tx, scorer, logger)
	riskSvc.SetMetrics(risk.NewMetrics(reg))
	riskSvc.SetWindow(cfg.MeasurementWindow)
	if rdb != nil {
		riskSvc.SetCache(risk.NewRedisCache(rdb, cfg.RiskCacheTTL))
	}
	if cfg.MLOverrideURL != "" {
		riskSvc.SetOverride(risk.NewHTTPOverride(cfg.MLOverrideURL, cfg.MLOverrideTimeout))
		logger.Info().Str("url", cfg.MLOverrideURL).Msg("ml override enabled")
	}

	handlers := []interface{ RegisterRoutes(*echo.Group) }{
		identity.NewHandler(identitySvc, guard),
		vitals.NewHandler(vitals.NewService(measurements, riskSvc, logger), guard),
		records.NewHandler(records.NewService(medicalRecords, riskSvc, logger), guard),
		scheduling.NewHandler(scheduling.NewService(scheduling.NewAppointmentRepoPG(pool)), guard),
		medication.NewHandler(medication.NewService(medication.NewPrescriptionRepoPG(pool)), guard),
		emergency.NewHandler(emergency.NewService(emergency.NewAlertRepoPG(pool), logger), guard),
		risk.NewHandler(riskSvc, guard),
	}
	for _, h := range handlers {
		h.RegisterRoutes(apiV1)
	}

	logger.Info().Int("handlers", len(handlers)).Int("routes", len(e.Routes())).Msg("routes registered")
	return e
}
