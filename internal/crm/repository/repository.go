// Package repository provides pgx-backed persistence for the CRM entities.
// Every query is scoped by company ID; tenant isolation is enforced here, not
// in the callers.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist within the company scope.
var ErrNotFound = errors.New("entity not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository
// methods run identically inside and outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository bundles all entity stores over a single connection source.
type Repository struct {
	db   querier
	pool *pgxpool.Pool
}

// New creates a repository over a connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn with a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise, so a
// failure in any step leaves no partial writes behind.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if r.pool == nil {
		// Already inside a transaction; nested units of work join it.
		return fn(r)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository{db: tx})
	})
}

// Ping verifies database connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}
