package repository

import (
	"context"
	"log"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/jackc/pgx/v5"
)

// InTx runs fn inside a transaction. Rollback on any error, commit
// otherwise.
func InTx(ctx context.Context, db DBPool, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InTxRetry wraps InTx with bounded retries on transient datastore
// failures (serialization aborts, deadlocks). After the attempts are
// exhausted the failure surfaces as a conflict so request paths can
// return an actionable error instead of a 500.
func InTxRetry(ctx context.Context, db DBPool, attempts int, backoff time.Duration, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
		err := InTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	log.Printf("repository: giving up after %d transient failures: %v", attempts+1, lastErr)
	return domain.Conflict("datastore is busy, please retry")
}
