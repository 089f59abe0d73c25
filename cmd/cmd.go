package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairsense-backend/internal/config"
	"pairsense-backend/internal/handlers"
	"pairsense-backend/internal/middleware"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/services"
	"pairsense-backend/internal/watch"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories and the change feed
	userRepo := repository.NewUserRepository(db)
	pairRepo := repository.NewPairRepository(db)
	feed := watch.NewFeed()

	// Initialize services
	userService := services.NewUserService(userRepo, feed, cfg.Auth.JWTSecret, cfg.Presence.MovementToleranceDeg)
	pairService := services.NewPairService(pairRepo, userRepo, feed)

	if cfg.Weather.APIKey == "" {
		log.Warn().Msg("Weather API key is not set, weather refreshes will fail")
	}
	weatherClient := services.NewWeatherClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Weather.WeatherTimeout())

	var dispatcher *services.Dispatcher
	if cfg.Push.Enabled {
		provider, err := services.NewAPNSProvider(
			cfg.Push.KeyPath,
			cfg.Push.KeyID,
			cfg.Push.TeamID,
			cfg.Push.Topic,
			cfg.Push.Production,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push provider")
		}
		dispatcher = services.NewDispatcher(provider, userRepo, cfg.Push.BatchSize)
	} else {
		log.Warn().Msg("Push is disabled, partner open notifications will be skipped")
	}

	// Wire the server-side trigger pipeline into the change feed. Each
	// event is handled on its own goroutine, independent per invocation.
	pipeline := services.NewTriggerPipeline(
		userRepo,
		pairRepo,
		weatherClient,
		dispatcher,
		feed,
		cfg.Presence.MovementToleranceDeg,
		cfg.Presence.DebounceWindow(),
	)
	feed.SubscribeAllUsers(func(ch watch.UserChange) {
		go pipeline.HandleUserChange(context.Background(), ch.Before, ch.After)
	})

	wsHub := services.NewWSHub()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	pairHandler := handlers.NewPairHandler(pairService, wsHub)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, feed, userRepo, pairRepo)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.SignIn)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/me", userHandler.Me)
			r.Put("/me/mood", userHandler.SetMood)
			r.Put("/me/location", userHandler.UpdateLocation)
			r.Post("/me/opened", userHandler.TouchOpened)
			r.Post("/me/tokens", userHandler.RegisterToken)
			r.Post("/pairs", pairHandler.CreateInvite)
			r.Post("/pairs/join", pairHandler.JoinPair)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
