// Package postgres implements the identity storage contract on PostgreSQL
// via pgx. Uniqueness rules live in the schema as partial unique indexes over
// active rows, so constraint violations are the concurrency control and map
// back to domain errors here.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/pg"
)

// Constraint names the schema uses for identity uniqueness.
const (
	constraintAccountEmail  = "accounts_email_key"
	constraintMethodSubject = "auth_methods_kind_subject_active_idx"
	constraintMethodKind    = "auth_methods_account_kind_active_idx"
)

// db is the subset of pgxpool.Pool and pgx.Tx the storage runs on. pgx.Tx
// nests transactions through savepoints, so WithinTx works at any depth.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Storage implements auth.Storage on PostgreSQL.
type Storage struct {
	db db
}

// New creates a Postgres-backed identity storage.
func New(pool *pgxpool.Pool) *Storage {
	return &Storage{db: pool}
}

// WithinTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.Storage) error) error {
	txConn, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = txConn.Rollback(ctx)
	}()

	if err := fn(ctx, &Storage{db: txConn}); err != nil {
		return err
	}
	if err := txConn.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapConstraintErr translates a unique violation into the domain error for
// the constraint it hit, or wraps any other error.
func mapConstraintErr(err error, op string) error {
	if pg.IsDuplicateKeyError(err) {
		switch pg.ConstraintName(err) {
		case constraintAccountEmail:
			return auth.ErrDuplicateEmail
		case constraintMethodSubject:
			return auth.ErrMethodAlreadyClaimed
		case constraintMethodKind:
			return auth.ErrMethodAlreadyPresent
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
