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

	"github.com/foliotrack/portfolio-engine/internal/ledger"
	"github.com/foliotrack/portfolio-engine/internal/marketcal"
	"github.com/foliotrack/portfolio-engine/internal/metrics"
	"github.com/foliotrack/portfolio-engine/internal/portfolio"
	"github.com/foliotrack/portfolio-engine/internal/pricecache"
	"github.com/foliotrack/portfolio-engine/internal/quote"
	"github.com/foliotrack/portfolio-engine/internal/sandbox"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

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
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Market calendar and data provider ---
	cal := marketcal.NewNYSE()
	provider := quote.WithRetry(quote.NewYahooProvider(), 3, 500*time.Millisecond)

	// --- WebSocket quote feed ---
	hub := pricecache.NewHub()
	go hub.Run()

	// --- Services ---
	prices := pricecache.New(st, provider, cal, hub)
	engine := ledger.NewEngine(st)
	sandboxSvc := sandbox.NewService(st, prices, engine)
	portfolioSvc := portfolio.NewService(st, prices, engine, cal)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"portfolio-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time quote updates.
		r.Get("/ws", hub.HandleWS)

		// Price cache.
		r.Get("/prices", prices.GetPrices)
		r.Post("/prices/refresh", prices.RefreshPrices)
		r.Delete("/prices", prices.InvalidatePrices)
		r.Get("/prices/{symbol}/close", prices.GetClosingPrice)

		// Real portfolio: valuation and ledger.
		r.Get("/portfolio/{ownerID}", portfolioSvc.GetValuation)
		r.Post("/portfolio/{ownerID}/recalculate", portfolioSvc.RecalculateHandler)
		r.Get("/portfolio/{ownerID}/transactions", portfolioSvc.ListTradesHandler)
		r.Post("/portfolio/{ownerID}/transactions", portfolioSvc.RecordTradeHandler)
		r.Delete("/portfolio/{ownerID}/transactions/{tradeID}", portfolioSvc.DeleteTradeHandler)

		// Sandbox portfolios and paper trades.
		r.Get("/sandbox/portfolios", sandboxSvc.ListPortfoliosHandler)
		r.Post("/sandbox/portfolios", sandboxSvc.CreatePortfolioHandler)
		r.Get("/sandbox/portfolios/{portfolioID}", sandboxSvc.GetPortfolioHandler)
		r.Put("/sandbox/portfolios/{portfolioID}", sandboxSvc.UpdatePortfolioHandler)
		r.Delete("/sandbox/portfolios/{portfolioID}", sandboxSvc.DeletePortfolioHandler)
		r.Get("/sandbox/portfolios/{portfolioID}/valuation", portfolioSvc.GetSandboxValuation)
		r.Get("/sandbox/portfolios/{portfolioID}/trades", sandboxSvc.ListTransactionsHandler)
		r.Post("/sandbox/portfolios/{portfolioID}/trades", sandboxSvc.ExecuteTradeHandler)
		r.Put("/sandbox/portfolios/{portfolioID}/trades/{tradeID}", sandboxSvc.EditTransactionHandler)
		r.Delete("/sandbox/portfolios/{portfolioID}/trades/{tradeID}", sandboxSvc.DeleteTransactionHandler)
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
		slog.Info("portfolio-engine listening", "port", port)
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

	slog.Info("shutting down portfolio-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("portfolio-engine stopped")
}
