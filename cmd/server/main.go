package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/paribook/settle-engine/internal/api"
	"github.com/paribook/settle-engine/internal/engine"
	"github.com/paribook/settle-engine/internal/ledger"
	"github.com/paribook/settle-engine/internal/limits"
	"github.com/paribook/settle-engine/internal/metrics"
	"github.com/paribook/settle-engine/internal/money"
	"github.com/paribook/settle-engine/internal/store"
)

func main() {
	// Load a local .env if present; real deployments set the
	// environment directly.
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	switch {
	case os.Getenv("DATABASE_URL") != "":
		pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

	case os.Getenv("SQLITE_PATH") != "":
		sqliteStore, err := store.NewSQLiteStore(os.Getenv("SQLITE_PATH"))
		if err != nil {
			slog.Error("sqlite open failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { sqliteStore.Close() })
		st = sqliteStore
		slog.Info("using SQLite store", "path", os.Getenv("SQLITE_PATH"))

	default:
		slog.Warn("no DATABASE_URL or SQLITE_PATH set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, 30*time.Second)
		slog.Info("Redis cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger ---
	openingBalance := envAmount("OPENING_BALANCE", 0)
	lg := ledger.NewMemoryLedger(openingBalance)

	// --- Engine ---
	params := engine.DefaultParams()
	if v := os.Getenv("FEE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			slog.Error("invalid FEE_BPS", "value", v)
			os.Exit(1)
		}
		params.FeeBps = uint16(bps)
	}
	params.Limits = limits.Policy{
		MaxStake: envAmount("MAX_STAKE", 0),
		MaxPool:  envAmount("MAX_MARKET_POOL", 0),
	}
	eng := engine.New(st, lg, nil, params)

	// --- WebSocket hub ---
	hub := api.NewWSHub()
	go hub.Run()

	// --- HTTP service ---
	svc := api.NewService(eng, st, lg, hub)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settle-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Mount)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("settle-engine listening", "port", port, "fee_bps", params.FeeBps)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down settle-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("settle-engine stopped")
}

// envAmount reads a currency amount from the environment, falling back
// to def when unset. Exits on malformed values.
func envAmount(key string, def money.Amount) money.Amount {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	amt, err := money.Parse(v)
	if err != nil {
		slog.Error("invalid amount in environment", "key", key, "value", v)
		os.Exit(1)
	}
	return amt
}
