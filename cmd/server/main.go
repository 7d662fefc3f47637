package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/config"
	"github.com/parlor-chat/parlor/internal/database"
	"github.com/parlor-chat/parlor/internal/handler"
	"github.com/parlor-chat/parlor/internal/logger"
	"github.com/parlor-chat/parlor/internal/middleware"
	"github.com/parlor-chat/parlor/internal/store"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = zlog.Sync() }()

	// Connect to the durable store when a DSN is configured. Startup does
	// not fail without one; the server runs on the in-memory fallback.
	var durable store.Store
	if cfg.HasDatabase() {
		db, err := database.New(cfg)
		if err != nil {
			zlog.Warn("durable store unavailable, running on fallback store", zap.Error(err))
		} else {
			defer db.Close()
			zlog.Info("running database migrations")
			if err := db.Migrate(); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
			durable = store.NewGorm(db.DB)
			zlog.Info("durable store connected", zap.Bool("postgres", db.IsPostgres()))
		}
	} else {
		zlog.Warn("no database configured, all data is ephemeral")
	}

	s := store.NewFailover(durable, store.NewMemory(), zlog)

	// Session and guest auth plumbing
	tokens := auth.NewTokenCodec([]byte(cfg.AuthSecret), cfg.SecureCookies())
	resolver := auth.NewResolver(tokens)
	limiter := auth.NewLimiter(cfg.RateLimitWindow)
	gate := middleware.NewGate(resolver, limiter, cfg.SecureCookies(), cfg.RateLimitSharedUnknownBucket, zlog)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{auth.GuestHeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	h := handler.New(s, cfg, tokens, zlog)

	// Health check endpoint (reports fallback mode)
	r.Get("/health", h.Health)

	// Auth routes (outside the gate; the gate skips /api/auth itself)
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/guest", h.GuestProvision)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	// Everything else runs behind the request gate, which guarantees a
	// resolved identity (or a redirect/429) before a handler runs.
	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware)

		r.Get("/api/history", h.History)

		r.Route("/api/chat", func(r chi.Router) {
			r.Post("/", h.AppendMessage)
			r.Get("/{chatID}", h.GetChat)
			r.Delete("/{chatID}", h.DeleteChat)
			r.Get("/{chatID}/messages", h.Messages)
			r.Delete("/{chatID}/messages", h.DeleteTrailingMessages)
			r.Patch("/{chatID}/visibility", h.UpdateVisibility)
			r.Get("/{chatID}/streams", h.Streams)
		})

		r.Route("/api/vote", func(r chi.Router) {
			r.Get("/", h.Votes)
			r.Patch("/", h.Vote)
		})

		r.Route("/api/document", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Post("/", h.SaveDocument)
			r.Delete("/", h.DeleteDocumentVersions)
		})

		r.Route("/api/suggestions", func(r chi.Router) {
			r.Get("/", h.Suggestions)
			r.Post("/", h.SaveSuggestions)
		})
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zlog.Info("server starting", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	zlog.Info("server stopped")
}
