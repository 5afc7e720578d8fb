// Package postgres is the PostgreSQL storage.Store. Committee locks are
// SELECT ... FOR UPDATE row locks; the single-active-claim invariants are
// partial unique indexes, so a lost race surfaces as sentinel.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"lted/internal/storage"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/sentinel"
	txcontext "lted/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

const (
	pgUniqueViolation = "23505"
	pgLockTimeout     = "55P03"
	pgSerialization   = "40001"
	pgDeadlock        = "40P01"

	membershipKeyConstraint = "memberships_voter_committee_term_key"
)

type Store struct {
	db      *sql.DB
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds each unit of work when the caller's context has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn in one READ COMMITTED transaction. The *sql.Tx is also put on
// the context so context-only collaborators join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, sqlTx), &tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return storage.Translate(mapErr(fmt.Errorf("commit transaction: %w", err)), "failed to commit")
	}
	return nil
}

// mapErr folds driver errors into sentinels the services understand.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", sentinel.ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == membershipKeyConstraint {
				return fmt.Errorf("%w: %w", sentinel.ErrAlreadyUsed, err)
			}
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		case pgSerialization, pgDeadlock, pgLockTimeout:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Seeder = (*Store)(nil)
	_ storage.Tx     = (*tx)(nil)
)
