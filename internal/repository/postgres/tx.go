package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ngbank/aml-compliance/internal/apperr"
)

// Querier is the subset of *pgxpool.Pool and pgx.Tx every repository in
// this package needs, so a repository method runs unchanged whether it
// is talking to the shared pool or participating in an ambient
// transaction started by TxManager.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// querierFrom returns the pgx.Tx stashed on ctx by TxManager.WithTx, or
// pool when the caller isn't running inside one.
func querierFrom(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// TxManager runs a unit of work inside a single Postgres transaction
// (§5: "Alerts and the parent transaction are written in a single atomic
// commit"). Every repository call made with the ctx passed to fn
// participates in the same pgx.Tx via querierFrom, and is rolled back as
// a whole if fn returns an error.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// existsByID reports whether a row with the given id is still present in
// table. Repositories call this after an Update's WHERE id=$1 AND
// updated_at=$n matches zero rows, to tell a stale write (row exists, just
// moved on) apart from a plain not-found. table is always a repository's
// own constant, never caller input, so building the query with Sprintf
// carries no injection risk.
func existsByID(ctx context.Context, q Querier, table string, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table), id).Scan(&exists)
	return exists, err
}

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Dependency("tx_begin_failed", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Dependency("tx_commit_failed", err)
	}
	return nil
}
