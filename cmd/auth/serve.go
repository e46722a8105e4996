package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/taskhub_auth/internal/db"
	"github.com/Skotchmaster/taskhub_auth/internal/httpserver"
	"github.com/Skotchmaster/taskhub_auth/internal/metrics"
	"github.com/Skotchmaster/taskhub_auth/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expired token sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(true)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	if err := db.Migrate(ctx, a.db); err != nil {
		log.Error("migration failed", "error", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterMetrics(reg)

	e := httpserver.NewEcho(log)
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:  &httpserver.AuthHTTP{Svc: a.svc},
		UsersHandler: &httpserver.UsersHTTP{Svc: a.svc},
		Tokens:       a.issuer,
		Ready:        func(ctx context.Context) error { return db.Ping(ctx, a.db) },
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	// Deferred after a.Close, so the sweeper is joined before the database closes.
	stopSweep := sweeper.New(a.store, cfg.SweepInterval).Start(ctx)
	defer stopSweep()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr())
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("echo start", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("echo shutdown", "error", err)
	}
	log.Info("stopped")
	return nil
}
