// Package db is the pgx-backed implementation of ports.Store.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
	"github.com/saimali7/Tour-CRM-sub003/internal/utils"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// method works identically inside and outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type Store struct {
	repo
	Pool *pgxpool.Pool
}

type repo struct {
	q querier
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{repo: repo{q: pool}, Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// WithTx runs fn against a transaction-scoped Repo. The transaction is
// rolled back when fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Repo) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(repo{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LockDate takes the per-date advisory lock. The lock key is a stable
// hash of the date string and is released at transaction end.
func (r repo) LockDate(ctx context.Context, date string) error {
	key := int64(utils.HashStringToUint64("dispatch|" + date))
	_, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}
