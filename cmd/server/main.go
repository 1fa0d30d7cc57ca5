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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/giftwiser/internal/activity"
	"github.com/mmynk/giftwiser/internal/assign"
	"github.com/mmynk/giftwiser/internal/auth"
	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/config"
	"github.com/mmynk/giftwiser/internal/engine"
	"github.com/mmynk/giftwiser/internal/ledger"
	"github.com/mmynk/giftwiser/internal/metrics"
	"github.com/mmynk/giftwiser/internal/middleware"
	"github.com/mmynk/giftwiser/internal/resilience"
	"github.com/mmynk/giftwiser/internal/service"
	"github.com/mmynk/giftwiser/internal/splits"
	"github.com/mmynk/giftwiser/internal/storage/sqldb"
	"github.com/mmynk/giftwiser/pkg/logging"
)

// devJWTSecret is used outside production when JWT_SECRET is unset.
const devJWTSecret = "giftwiser-dev-secret"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Setup(cfg.App.Environment, cfg.Logger.Level)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.Database.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	guard := resilience.NewGuard("store", cfg.Resilience, logger, m)
	hub := changefeed.NewHub(logger)
	hub.Subscribe(nil, func(c changefeed.Change) {
		logger.Debug("Change committed",
			"kind", string(c.Kind),
			"op", string(c.Op),
			"id", c.ID,
			"list_id", c.ListID)
	})
	outbox := activity.NewOutbox(store, guard, logger)

	deps := engine.Deps{
		Guard:   guard,
		Sink:    outbox,
		Feed:    hub,
		Metrics: m,
		Logger:  logger,
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	jwtManager := auth.NewJWTManager(secret, 24*time.Hour)
	limiter := middleware.NewKeyedLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	opts := []connect.HandlerOption{
		connect.WithInterceptors(
			middleware.RequireAuth(jwtManager),
			middleware.LoggingInterceptor(logger),
			middleware.RateLimit(limiter),
		),
	}

	mux := http.NewServeMux()
	mux.Handle(service.NewClaimServiceHandler(service.NewClaimService(ledger.New(store, deps)), opts...))
	mux.Handle(service.NewSplitServiceHandler(service.NewSplitService(splits.New(store, deps)), opts...))
	mux.Handle(service.NewAssignmentServiceHandler(service.NewAssignmentService(assign.New(store, deps, nil)), opts...))
	mux.Handle(service.NewEventServiceHandler(service.NewEventService(store, outbox, deps), opts...))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		if guard.State() == resilience.StateOpen {
			http.Error(w, "store circuit open", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		// Wrap with h2c for HTTP/2 without TLS (required for Connect)
		Handler:      h2c.NewHandler(mux, &http2.Server{}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", server.Addr, "env", cfg.App.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg config.DatabaseConfig) (*sqldb.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return sqldb.OpenPostgres(cfg.DSN)
	default:
		return sqldb.OpenSQLite(cfg.Path)
	}
}
