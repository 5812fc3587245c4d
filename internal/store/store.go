// Package store is the persistence gateway backed by Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringer-im/server/internal/domain"
)

// Store wraps a pgx pool. All operations honor a transaction carried in
// the context; outside one they run directly on the pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

type txKey struct{}

// querier is the subset of pgx.Tx / pgxpool.Pool the store relies on.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func txFromContext(ctx context.Context) (querier, bool) {
	q, ok := ctx.Value(txKey{}).(querier)
	return q, ok
}

// conn returns the active transaction if the context carries one,
// otherwise the pool.
func (s *Store) conn(ctx context.Context) querier {
	if q, ok := txFromContext(ctx); ok {
		return q
	}
	return s.pool
}

// WithTx runs fn inside a transaction. Nested calls reuse the
// transaction already in the context.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, querier(tx))); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// storageErr wraps driver failures into the gateway's closed error set,
// preserving already-classified errors.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAlreadyExists) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorage, err)
}
