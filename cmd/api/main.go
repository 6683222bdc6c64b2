package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tarjetajoven/api/internal/http/handlers"
	mw "github.com/tarjetajoven/api/internal/http/middleware"
	"github.com/tarjetajoven/api/internal/repo/postgres"
	"github.com/tarjetajoven/api/internal/sender"
	"github.com/tarjetajoven/api/internal/service"
	"github.com/tarjetajoven/api/pkg/config"
	"github.com/tarjetajoven/api/pkg/database"
	"github.com/tarjetajoven/api/pkg/events"
	"github.com/tarjetajoven/api/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis backs the per-IP throttle; the API still works without it.
	var redisClient redis.UniversalClient
	if opts, err := redis.ParseURL(cfg.Redis.URL); err != nil {
		logger.Warn("Invalid REDIS_URL, IP throttling disabled", "error", err)
	} else {
		redisClient = redis.NewClient(opts)
	}

	// Event bus is optional: without NATS_URL events are dropped.
	var bus events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsBus, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsBus.Close()
		bus = natsBus
	}

	// Initialize repositories
	cardholdersRepo := postgres.NewCardholdersRepo(pool)
	auditRepo := postgres.NewAuditRepo(pool)
	accountsRepo := postgres.NewAccountsRepo(pool)
	tokensRepo := postgres.NewRefreshTokensRepo(pool)
	otpRepo := postgres.NewOTPRepo(pool)
	catalogRepo := postgres.NewCatalogRepo(pool)

	// Initialize services
	cardholderService := service.NewCardholderService(cardholdersRepo, auditRepo, bus, cfg.Lookup)
	authService := service.NewAuthService(accountsRepo, tokensRepo, otpRepo, sender.NewDevSender(), cfg.Auth)
	catalogService := service.NewCatalogService(catalogRepo)

	h := handlers.New(cardholderService, authService, catalogService, cfg)

	ipLimiter := mw.NewIPRateLimiter(redisClient, "lookup_ip", 30, time.Minute)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORS.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cardholders", func(r chi.Router) {
			r.With(ipLimiter.Middleware()).Post("/lookup", h.Lookup)
			r.Post("/{curp}/account", h.CreateAccount)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.With(h.RequireJWT).Post("/logout", h.Logout)
			r.With(ipLimiter.Middleware()).Post("/otp/send", h.SendOTP)
			r.Post("/otp/verify", h.VerifyOTP)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.Catalog)
			r.Get("/municipios", h.Municipios)
		})

		r.With(h.RequireJWT).Get("/me", h.Me)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("API shutdown error", "error", err)
		}
	}()

	logger.Info("Starting API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("API server error", "error", err)
		os.Exit(1)
	}
}
