package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/modelmeter/gateway/internal/gateway"
	"github.com/modelmeter/gateway/internal/gateway/auth"
	"github.com/modelmeter/gateway/internal/gateway/cache"
	"github.com/modelmeter/gateway/internal/gateway/handlers"
	"github.com/modelmeter/gateway/internal/gateway/providers"
	"github.com/modelmeter/gateway/internal/gateway/ratelimit"
	"github.com/modelmeter/gateway/internal/gateway/usage"
	"github.com/modelmeter/gateway/internal/shared/config"
	"github.com/modelmeter/gateway/internal/shared/database"
	"github.com/modelmeter/gateway/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting gateway", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Response cache is optional; the gateway runs fine without Redis.
	var resultCache gateway.ResultCache
	if cfg.CacheEnabled {
		redisClient, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		resultCache = cache.New(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		logger.Info("connected to Redis, response cache enabled",
			zap.Int("ttl_seconds", cfg.CacheTTLSeconds))
	}

	registry := providers.NewRegistry(cfg.Providers)
	limiter := ratelimit.New()
	authorizer := auth.New(db, logger)
	recorder := usage.New(db, logger)

	svc := gateway.NewService(authorizer, limiter, db, db, registry, recorder,
		resultCache, cfg.DefaultRateLimit, logger)
	h := handlers.NewHandler(svc, logger)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", h.HandleListModels)
		r.Post("/models/{modelID}/generate", h.HandleGenerate)
		r.Post("/models/{modelID}/embeddings", h.HandleEmbeddings)
		r.Get("/usage", h.HandleUsage)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
