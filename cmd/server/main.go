package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/famtrack/tracker-server-go/internal/config"
	"github.com/famtrack/tracker-server-go/internal/database"
	"github.com/famtrack/tracker-server-go/internal/handler"
	"github.com/famtrack/tracker-server-go/internal/jobs"
	"github.com/famtrack/tracker-server-go/internal/middleware"
	"github.com/famtrack/tracker-server-go/internal/redis"
	"github.com/famtrack/tracker-server-go/internal/repository"
	"github.com/famtrack/tracker-server-go/internal/service"
	"github.com/famtrack/tracker-server-go/internal/sse"
	"github.com/famtrack/tracker-server-go/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	pairingCodeRepo := repository.NewPairingCodeRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	locationRepo := repository.NewLocationRepository(db.DB)
	familyRepo := repository.NewFamilyRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	issuer := token.NewIssuer(cfg.UserTokenSecret, cfg.DeviceTokenSecret, cfg.DeviceTokenTTL())

	pairingService := service.NewPairingService(
		db, pairingCodeRepo, deviceRepo, familyRepo, issuer, broker, cfg.PairingTTL(),
	)
	telemetryService := service.NewTelemetryService(
		db, deviceRepo, locationRepo, familyRepo, broker, cfg.ThrottleWindow(),
	)
	deviceService := service.NewDeviceService(db, deviceRepo, pairingCodeRepo, familyRepo)

	authMiddleware := middleware.NewAuthMiddleware(issuer)
	deviceAuthMiddleware := middleware.NewDeviceAuthMiddleware(issuer)
	deviceRateLimitMiddleware := middleware.NewDeviceRateLimitMiddleware(
		redisClient.Client, cfg.TelemetryRateLimit,
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	pairingHandler := handler.NewPairingHandler(pairingService)
	deviceHandler := handler.NewDeviceHandler(deviceService, telemetryService)
	telemetryHandler := handler.NewTelemetryHandler(telemetryService)
	eventsHandler := handler.NewEventsHandler(broker, familyRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/pairing", func(r chi.Router) {
		// Redeem carries no user token; the pairing code is the credential.
		r.Post("/redeem", pairingHandler.Redeem)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Mount("/", pairingHandler.Routes())
		})
	})

	r.Route("/v1/devices", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", deviceHandler.Routes())
	})

	r.Route("/v1/telemetry", func(r chi.Router) {
		r.Use(deviceAuthMiddleware.Handler)
		r.Use(deviceRateLimitMiddleware.Handler)
		r.Mount("/", telemetryHandler.Routes())
	})

	r.Route("/v1/events", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Get("/", eventsHandler.ServeHTTP)
	})

	cleanupJob := jobs.NewCleanupJob(pairingCodeRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0, // SSE connections stay open indefinitely
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
