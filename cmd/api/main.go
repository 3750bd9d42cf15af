package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/touristlog/touristlog-api/internal/config"
	"github.com/touristlog/touristlog-api/internal/domain/ledger"
	"github.com/touristlog/touristlog-api/internal/domain/pageview"
	"github.com/touristlog/touristlog-api/internal/domain/settlement"
	"github.com/touristlog/touristlog-api/internal/metrics"
	"github.com/touristlog/touristlog-api/internal/middleware"
	"github.com/touristlog/touristlog-api/internal/pkg/database"
	"github.com/touristlog/touristlog-api/internal/pkg/jwt"
	"github.com/touristlog/touristlog-api/internal/pkg/lock"
	"github.com/touristlog/touristlog-api/internal/pkg/logger"
	pkgresponse "github.com/touristlog/touristlog-api/internal/pkg/response"
	"github.com/touristlog/touristlog-api/internal/pkg/xym"
)

const userAgent = "TouristLog/1.0 settlement"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Tourist Log API")

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	if cfg.XYMTreasuryAddress == "" {
		log.Warn().Msg("XYM_TREASURY_ADDRESS is empty, transfers will be rejected by the rail")
	}

	jwtService := jwt.NewService(cfg.SessionSecret, 24*time.Hour)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	pageviewRepo := pageview.NewRepository(db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo, collector)
	pageviewService := pageview.NewService(pageviewRepo, ledgerRepo, cfg.PageViewEntryDeadlineDay)
	settlementService := settlement.NewService(
		ledgerRepo,
		pageviewRepo,
		xym.NewClient(cfg.XYMRailURL, cfg.XYMRailToken, cfg.RailTimeout(), userAgent),
		lock.New(redis, "touristlog:lock:"),
		collector,
		settlement.Config{
			TreasuryAddress: cfg.XYMTreasuryAddress,
			Concurrency:     cfg.PayoutConcurrency,
			LockTTL:         cfg.SettlementLockTTL,
		},
	)

	// ---------- Handlers ----------
	h := handlers{
		ledger:     ledger.NewHandler(ledgerService),
		pageview:   pageview.NewHandler(pageviewService),
		settlement: settlement.NewHandler(settlementService),
	}

	r := newRouter(cfg, h, middleware.Auth(jwtService), reg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // the settle handler lifts it for its own response
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type handlers struct {
	ledger     *ledger.Handler
	pageview   *pageview.Handler
	settlement *settlement.Handler
}

func newRouter(cfg *config.Config, h handlers, authMiddleware func(http.Handler) http.Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/transactions", h.ledger.Routes(authMiddleware))
		r.Mount("/topics/{topicID}/pageviews", h.pageview.Routes(authMiddleware))
		r.Mount("/pageviews", h.settlement.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/transactions", h.ledger.AdminRoutes(authMiddleware))
	})

	return r
}
