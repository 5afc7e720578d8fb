package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"lted/internal/eligibility"
	"lted/internal/flag/reconcile"
	"lted/internal/flag/review"
	membershipmetrics "lted/internal/membership/metrics"
	membershipservice "lted/internal/membership/service"
	"lted/internal/platform/config"
	platformpg "lted/internal/platform/postgres"
	platformredis "lted/internal/platform/redis"
	seatservice "lted/internal/seat/service"
	"lted/internal/storage"
	"lted/internal/storage/memory"
	"lted/internal/storage/postgres"
	"lted/pkg/platform/audit"
	"lted/pkg/platform/audit/publisher"
	auditmemory "lted/pkg/platform/audit/store/memory"
	auditpg "lted/pkg/platform/audit/store/postgres"
)

const reconcileLockKey = "lted:reconcile:lock"

var errMissingDatabase = errors.New("LTED_DATABASE_URL is required")

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return platformpg.Open(ctx, platformpg.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
}

// deps holds every long-lived component the commands share.
type deps struct {
	db          *sql.DB
	redis       *platformredis.Client
	store       storage.Store
	audit       *publisher.Publisher
	memberships *membershipservice.Service
	seats       *seatservice.Service
	eligibility *eligibility.Service
	reconciler  *reconcile.Job
	reviewer    *review.Service
}

// buildDeps wires storage, audit and services. Without LTED_DATABASE_URL the
// process runs against the in-memory store, which is only useful for local
// experiments.
func buildDeps(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*deps, error) {
	d := &deps{}

	var auditStore audit.Store
	if cfg.DatabaseURL != "" {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.db = db
		d.store = postgres.New(db, postgres.WithTxTimeout(cfg.TxTimeout))
		auditStore = auditpg.New(db)
	} else {
		log.Warn("LTED_DATABASE_URL not set, using in-memory storage")
		d.store = memory.New()
		auditStore = auditmemory.NewInMemoryStore()
	}
	d.audit = publisher.NewPublisher(auditStore, publisher.WithLogger(log))

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		d.close()
		return nil, err
	}
	d.redis = rc

	validator := eligibility.New(eligibility.WithLogger(log))
	d.eligibility = eligibility.NewService(d.store, validator)
	d.seats = seatservice.New(d.store,
		seatservice.WithLogger(log),
		seatservice.WithAuditPublisher(d.audit),
	)

	memberships, err := membershipservice.New(d.store,
		membershipservice.WithLogger(log),
		membershipservice.WithAuditPublisher(d.audit),
		membershipservice.WithMetrics(membershipmetrics.New(reg)),
		membershipservice.WithValidator(validator),
	)
	if err != nil {
		d.close()
		return nil, err
	}
	d.memberships = memberships

	jobOpts := []reconcile.Option{
		reconcile.WithLogger(log),
		reconcile.WithAuditPublisher(d.audit),
		reconcile.WithMetrics(reconcile.NewMetrics(reg)),
	}
	if d.redis != nil {
		jobOpts = append(jobOpts, reconcile.WithLocker(platformredis.NewLock(d.redis, reconcileLockKey, cfg.Redis.LockTTL)))
	}
	job, err := reconcile.New(d.store, jobOpts...)
	if err != nil {
		d.close()
		return nil, err
	}
	d.reconciler = job

	reviewer, err := review.New(d.store, memberships,
		review.WithLogger(log),
		review.WithAuditPublisher(d.audit),
	)
	if err != nil {
		d.close()
		return nil, err
	}
	d.reviewer = reviewer
	return d, nil
}

// ready reports whether the backing services answer.
func (d *deps) ready(ctx context.Context) error {
	var errs []error
	if d.db != nil {
		errs = append(errs, d.db.PingContext(ctx))
	}
	if d.redis != nil {
		errs = append(errs, d.redis.Health(ctx))
	}
	return errors.Join(errs...)
}

func (d *deps) close() {
	if d.audit != nil {
		d.audit.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}
