package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn holds the pool and, inside a transaction, the transaction. Every
// repository in this package embeds it.
type conn struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (c conn) queryer() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

// observe records query duration and errors. Use with defer and a named
// error result:
//
//	defer observe("get_list", time.Now(), &err)
//
// Domain outcomes such as not found are not counted as query errors.
func observe(operation string, start time.Time, err *error) {
	recorded := *err
	if errs.KindOf(recorded) != errs.KindInternal {
		recorded = nil
	}
	metrics.RecordQuery(operation, start, recorded)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// txCommitter finishes a transaction started by BeginTx. Rollback after
// Commit is a no-op.
type txCommitter struct {
	tx pgx.Tx
}

func (tc *txCommitter) Commit(ctx context.Context) error {
	return tc.tx.Commit(ctx)
}

func (tc *txCommitter) Rollback(ctx context.Context) error {
	err := tc.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
