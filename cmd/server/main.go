package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/residuals/internal/auth"
	"github.com/mmynk/residuals/internal/cascade"
	"github.com/mmynk/residuals/internal/config"
	"github.com/mmynk/residuals/internal/ledger"
	"github.com/mmynk/residuals/internal/middleware"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/service"
	"github.com/mmynk/residuals/internal/storage/sqlite"
	"github.com/mmynk/residuals/internal/workflow"
	"github.com/mmynk/residuals/pkg/api"
	"github.com/mmynk/residuals/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := sqlite.New(cfg.DBPath, sqlite.WithPageSize(cfg.Store.PageSize))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath, "page_size", cfg.Store.PageSize)

	var publisher outbox.Publisher = outbox.Discard{}
	rec := reconcile.New(store, nil)
	if cfg.Ledger.Enabled() {
		client := ledger.NewRESTClient(ledger.RESTConfig{
			BaseURL: cfg.Ledger.BaseURL,
			APIKey:  cfg.Ledger.APIKey,
			BaseID:  cfg.Ledger.BaseID,
			Table:   cfg.Ledger.Table,
			Timeout: cfg.Ledger.Timeout,
		})
		syncClient := ledger.NewSyncClient(client, cfg.Ledger.BatchDelay, ledger.WithBatchSize(cfg.Ledger.BatchSize))
		rec = reconcile.New(store, syncClient)
		publisher = outbox.NewInline(rec)
		slog.Info("Ledger sync enabled", "table", cfg.Ledger.Table, "batch_size", syncClient.BatchSize(), "batch_delay", cfg.Ledger.BatchDelay)
	} else {
		slog.Warn("Ledger sync disabled: LEDGER_BASE_URL is not set")
	}

	cache := participant.NewCache[string, *models.Partner](cfg.Cache.PartnerSize, cfg.Cache.PartnerTTL, time.Now)
	directory := participant.NewDirectory(store, cache)

	flow := workflow.New(store, rec, publisher, workflow.WithDirectory(directory))
	updater := cascade.New(store, rec, publisher, cascade.WithDirectory(directory))

	interceptors := []connect.Interceptor{middleware.MetricsInterceptor()}
	if cfg.Auth.Enabled {
		jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
		interceptors = append(interceptors, middleware.RequireAuth(jwtManager))
	} else {
		slog.Warn("Operator authentication disabled: AUTH_ENABLED is not set")
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor())
	opts := connect.WithInterceptors(interceptors...)

	mux := http.NewServeMux()
	mux.Handle(api.NewDealServiceHandler(service.NewDealService(store, rec, updater, publisher, directory), opts))
	mux.Handle(api.NewAdjustmentServiceHandler(service.NewAdjustmentService(flow), opts))
	mux.Handle(api.NewSyncServiceHandler(service.NewSyncService(rec), opts))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
