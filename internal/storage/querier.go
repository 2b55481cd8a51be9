// Package storage holds the thin pgx abstraction shared by the Offer
// Manager and the Audit Log so a single transaction can span both:
// spec §4.6 requires the audit write for an offer transition to land in
// "the same atomic boundary as offer persistence". Grounded on the
// teacher's pack-sibling ashita-ai-akashi/internal/search/outbox.go,
// which runs both SELECT...FOR UPDATE and the following writes through
// one pgx.Tx obtained from a pgxpool.Pool.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting a
// store/sink method run either standalone or inside a caller-managed
// transaction without a second code path.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner is satisfied by *pgxpool.Pool: anything that can start a
// transaction whose Querier the caller then threads through one unit of
// work.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction started on db, committing on
// success and rolling back on error or panic.
func WithTx(ctx context.Context, db Beginner, fn func(ctx context.Context, q Querier) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
