package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the querying surface the services need. Entity writes and their
// audit revisions share one transaction, so Begin is part of the contract.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the subset of pgx.Tx the services use.
type Tx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type poolDB struct {
	*pgxpool.Pool
}

func (p poolDB) Begin(ctx context.Context) (Tx, error) {
	return p.Pool.Begin(ctx)
}

// NewDB wraps a pgx pool in the DB interface.
func NewDB(pool *pgxpool.Pool) DB {
	return poolDB{pool}
}
