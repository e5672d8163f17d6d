package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bhardwajharsh207/imageforge/backend/internal/config"
	"github.com/bhardwajharsh207/imageforge/backend/internal/handler"
	"github.com/bhardwajharsh207/imageforge/backend/internal/history"
	"github.com/bhardwajharsh207/imageforge/backend/internal/inference"
	"github.com/bhardwajharsh207/imageforge/backend/internal/metrics"
	"github.com/bhardwajharsh207/imageforge/backend/internal/ratelimit"
	"github.com/bhardwajharsh207/imageforge/backend/internal/service"

	_ "github.com/bhardwajharsh207/imageforge/backend/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title ImageForge Backend API
// @version 1.0
// @description Text-to-image generation proxy with per-address rate limiting and per-user history.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.Default()
	if cfg.Inference.APIKey == "" {
		logger.Println("INFERENCE_API_KEY is not set, generation requests will fail until it is configured")
	}

	client := inference.New(cfg.Inference, logger)
	generateService := service.NewGenerateService(logger, client, cfg.Inference)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Distributed {
		redisLimiter := ratelimit.NewRedis(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.RateLimit.Window,
			cfg.RateLimit.Quota,
		)
		defer redisLimiter.Close()
		limiter = redisLimiter
		logger.Println("set redis as rate limiter store")
	} else {
		memLimiter := ratelimit.NewMemory(cfg.RateLimit.Window, cfg.RateLimit.Quota)
		memLimiter.StartJanitor(ctx, cfg.RateLimit.Window)
		limiter = memLimiter
	}

	g := handler.NewGenerateHandler(generateService, limiter, cfg.RateLimit.Window, logger)

	if cfg.History.Enable {
		store, err := history.New(cfg.History.DBPath)
		if err != nil {
			logger.Fatalf("history store error: %v", err)
		}
		defer store.Close()

		generateService.SetHistoryStore(store)
		g.SetHistory(store)
		logger.Printf("history store ready at %s\n", cfg.History.DBPath)
	}

	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.Logger,
		middleware.Recoverer,
		middleware.Throttle(cfg.Server.ThrottleLimit),
		middleware.Timeout(cfg.Server.Timeout),
		metrics.Middleware,
	}...)

	r.Post("/generate", g.Generate)
	r.Get("/history", g.History)
	r.Get("/health", g.HealthCheck)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Printf("server started :%s\n", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Println("server stopped")
}
