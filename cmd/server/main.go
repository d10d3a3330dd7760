package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/api"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/asset"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/carrycost"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/liquidate"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/marketdata"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/metrics"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/notify"
	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store and market data ---
	var st store.Store
	var quotes marketdata.Source
	var cleanup []func()

	var rdb *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, 5*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if rdb != nil {
		quotes = marketdata.NewRedisSource(rdb)
		slog.Info("Redis market data source enabled")
	} else {
		slog.Warn("REDIS_URL not set, using static market data source")
		quotes = marketdata.NewStaticSource()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Asset configuration ---
	assets := asset.DefaultTable()

	// --- Notification sinks ---
	hub := notify.NewHub()
	go hub.Run()

	sinks := []notify.Sink{notify.LogSink{}, hub}
	if webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL"); webhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(webhookURL))
		slog.Info("notification webhook enabled")
	}
	notifier := notify.NewFanout(sinks...)

	// --- Engine components ---
	executor := liquidate.NewExecutor(st, quotes, assets, notifier)

	accrualInterval := 24 * time.Hour
	if v := os.Getenv("ACCRUAL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid ACCRUAL_INTERVAL", "err", err)
			os.Exit(1)
		}
		accrualInterval = d
	}
	accrual := carrycost.NewJob(st, assets, accrualInterval)

	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	go accrual.Start(jobCtx)

	token := os.Getenv("ENGINE_TOKEN")
	if token == "" {
		slog.Warn("ENGINE_TOKEN not set, trigger endpoints are disabled")
	}
	apiSvc := api.NewService(st, executor, accrual, token)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"margin-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time notifications.
		r.Get("/ws", hub.HandleWS)

		apiSvc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("margin-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	jobCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down margin-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("margin-engine stopped")
}
