package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"runway-live-backend/internal/config"
	"runway-live-backend/internal/handlers"
	"runway-live-backend/internal/middleware"
	"runway-live-backend/internal/repository"
	"runway-live-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Redis backs the wish rate limiter; the service runs without it
	// when rate limiting is disabled.
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		defer rdb.Close()
	}

	// Initialize repositories
	guestRepo := repository.NewGuestRepository(db)
	lookRepo := repository.NewLookRepository(db)
	productRepo := repository.NewProductRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)

	// Initialize services
	var mediaService *services.MediaService
	if cfg.AWS.S3Bucket != "" {
		mediaService, err = services.NewMediaService(
			cfg.AWS.Region,
			cfg.AWS.S3Bucket,
			cfg.AWS.AccessKey,
			cfg.AWS.SecretKey,
			cfg.AWS.Endpoint,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create media service")
		}
	}
	guestService := services.NewGuestService(guestRepo, cfg.JWT.Secret, cfg.Operator.Password)
	showService := services.NewShowService(lookRepo, mediaService)
	wishlistService := services.NewWishlistService(wishlistRepo, guestRepo, productRepo, lookRepo)
	hub := services.NewHub(showService)
	go hub.Run(cfg.Realtime.StatsInterval)

	// Initialize handlers
	guestHandler := handlers.NewGuestHandler(guestService, wishlistService)
	showHandler := handlers.NewShowHandler(showService, guestService, hub)
	productHandler := handlers.NewProductHandler(productRepo, mediaService)
	wishlistHandler := handlers.NewWishlistHandler(wishlistService, hub)
	wsHandler := handlers.NewWebSocketHandler(hub, guestService, showService, wishlistService, cfg.Realtime)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.Realtime))

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/guests", guestHandler.Register)
		r.Post("/operator/login", showHandler.OperatorLogin)
		r.Get("/looks", showHandler.ListLooks)
		r.Get("/looks/active", showHandler.GetActiveLook)
		r.Get("/looks/{look_id}", showHandler.GetLook)
		r.Get("/products", productHandler.List)
		r.Get("/products/{product_id}", productHandler.Get)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(guestService))
			r.Post("/guests/{guest_id}/checkin", guestHandler.CheckIn)
			r.Get("/guests/{guest_id}/wishes", guestHandler.Wishlist)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb))
				r.Post("/wishes", wishlistHandler.AddWish)
				r.Delete("/wishes", wishlistHandler.RemoveWish)
			})

			// Operator routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOperator)
				r.Put("/looks/{look_id}/activate", showHandler.ActivateLook)
			})
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

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop accepting sessions and close the ones we have; no events are
	// broadcast past this point.
	hub.Shutdown()

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

// corsMiddleware handles CORS for the REST endpoints using the same
// origin policy as the websocket upgrader
func corsMiddleware(cfg config.RealtimeConfig) func(http.Handler) http.Handler {
	allowAll := cfg.Environment != "production"
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" && allowed[strings.TrimRight(origin, "/")] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
