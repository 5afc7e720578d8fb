package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lted/internal/flag/reconcile"
	membershiphandler "lted/internal/membership/handler"
	"lted/internal/platform/config"
	"lted/internal/platform/httpserver"
	"lted/internal/platform/metrics"
	"lted/internal/platform/middleware"
	platformpg "lted/internal/platform/postgres"
	"lted/pkg/platform/httputil"
)

func serveCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled reconciliation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the database schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) error {
	reg := metrics.NewRegistry()
	d, err := buildDeps(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer d.close()

	if migrate && d.db != nil {
		if err := platformpg.Migrate(ctx, d.db); err != nil {
			return err
		}
		log.Info("schema applied")
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Recover(log),
		middleware.Logger(log),
	)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		readyCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.ready(readyCtx); err != nil {
			log.WarnContext(r.Context(), "readiness check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler(reg))
	}

	h := membershiphandler.New(membershiphandler.Services{
		Memberships: d.memberships,
		Seats:       d.seats,
		Eligibility: d.eligibility,
		Reconciler:  d.reconciler,
		Reviewer:    d.reviewer,
	}, log)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Actor(log))
		h.Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting lted", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout, log)
	})
	if cfg.ReconcileInterval > 0 {
		sched := reconcile.NewScheduler(d.reconciler, cfg.ReconcileInterval, log)
		g.Go(func() error {
			return sched.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("lted stopped")
	return nil
}
