package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/go-todo-web/internal/config"
	"github.com/chepyr/go-todo-web/internal/db"
	"github.com/chepyr/go-todo-web/internal/handlers"
	"github.com/chepyr/go-todo-web/internal/logger"
	"github.com/chepyr/go-todo-web/internal/metrics"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	l, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid logger settings")
	}
	log.Logger = l

	dbConn := initDB(cfg)
	defer dbConn.Close()

	m := metrics.New()
	handler := initHandler(cfg, dbConn, m)
	if handler.RateLimiter != nil {
		defer handler.RateLimiter.Close()
	}

	router := handlers.NewRouter(handler, logger.Middleware(l), m.Middleware)
	router.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	startServer(server, cfg)
}

func initDB(cfg *config.Config) *sql.DB {
	dbConn, err := db.Connect(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, dbConn, cfg.DBDriver); err != nil {
		dbConn.Close()
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return dbConn
}

func initHandler(cfg *config.Config, dbConn *sql.DB, m *metrics.Metrics) *handlers.Handler {
	renderer, err := handlers.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load templates")
	}

	handler := &handlers.Handler{
		TaskRepo:       db.NewTaskRepository(dbConn),
		WSHub:          handlers.NewWSHub(),
		Renderer:       renderer,
		Metrics:        m,
		MultiUser:      cfg.MultiUser,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
	}
	if cfg.MultiUser {
		handler.UserRepo = db.NewUserRepository(dbConn)
		handler.Sessions = handlers.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
		handler.RateLimiter = handlers.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	}
	return handler
}

func startServer(server *http.Server, cfg *config.Config) {
	log.Info().
		Str("addr", server.Addr).
		Str("driver", cfg.DBDriver).
		Bool("multi_user", cfg.MultiUser).
		Bool("trust_proxy", cfg.TrustProxy).
		Msg("Starting todo server")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}
