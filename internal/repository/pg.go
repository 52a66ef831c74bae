package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods of *pgxpool.Pool used by the repositories,
// so tests can substitute an in-memory pool.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var resourceTables = map[domain.ResourceKind]string{
	domain.KindTour:   "tours",
	domain.KindRoom:   "rooms",
	domain.KindFlight: "flights",
}

func tableFor(kind domain.ResourceKind) (string, error) {
	t, ok := resourceTables[kind]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

// IsTransient reports whether a datastore error is worth retrying:
// serialization failures, deadlocks, lock timeouts and deadline expiry.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return true
		}
	}
	return errors.Is(err, context.DeadlineExceeded)
}
