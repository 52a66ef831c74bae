package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ResourceRepository interface {
	List(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error)
	GetByID(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (*domain.Resource, error)
	ReserveCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, units int) error
	ReleaseCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, units int) error
	ResetCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, status domain.ResourceStatus, revised *domain.Window) error
	NonTerminal(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error)
	Delete(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) error
}

type PGResourceRepository struct {
	db DBPool
}

func NewResourceRepository(db DBPool) ResourceRepository {
	return &PGResourceRepository{db: db}
}

const resourceColumns = `id, name, status, capacity_total, capacity_available, price_cents, window_start, window_end, created_at, updated_at`

func scanResource(row pgx.Row, kind domain.ResourceKind) (*domain.Resource, error) {
	var r domain.Resource
	if err := row.Scan(&r.ID, &r.Name, &r.Status, &r.CapacityTotal, &r.CapacityAvailable, &r.PriceCents, &r.WindowStart, &r.WindowEnd, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	r.Kind = kind
	return &r, nil
}

func (r *PGResourceRepository) List(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY window_start`, resourceColumns, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]domain.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows, kind)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *res)
	}
	return resources, rows.Err()
}

func (r *PGResourceRepository) GetByID(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, resourceColumns, table), ref.ID)
	return scanResource(row, ref.Kind)
}

// GetForUpdate locks the resource row for the rest of the transaction.
func (r *PGResourceRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (*domain.Resource, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1 FOR UPDATE`, resourceColumns, table), ref.ID)
	return scanResource(row, ref.Kind)
}

// ReserveCapacity decrements the ledger inside the caller's transaction.
// The WHERE clause is the no-oversell guard: the decrement only applies
// while enough units remain, so concurrent reservations serialize on the
// row and the losers see a conflict with the actual reason.
func (r *PGResourceRepository) ReserveCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, units int) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET capacity_available = capacity_available - $2, updated_at = now() WHERE id=$1 AND capacity_available >= $2`, table), ref.ID, units)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	// Guard failed: classify why for the caller.
	var available int
	err = tx.QueryRow(ctx, fmt.Sprintf(`SELECT capacity_available FROM %s WHERE id=$1`, table), ref.ID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.Conflict("no capacity available")
}

// ReleaseCapacity re-increments the ledger, bounded at capacity_total.
func (r *PGResourceRepository) ReleaseCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, units int) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET capacity_available = LEAST(capacity_total, capacity_available + $2), updated_at = now() WHERE id=$1`, table), ref.ID, units)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetCapacity restores the full ledger, used when a cascade has
// cancelled every active booking of the resource.
func (r *PGResourceRepository) ResetCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET capacity_available = capacity_total, updated_at = now() WHERE id=$1`, table), ref.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGResourceRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, status domain.ResourceStatus, revised *domain.Window) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	var cmdErr error
	if revised != nil {
		_, cmdErr = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET status=$2, window_start=$3, window_end=$4, updated_at=now() WHERE id=$1`, table), ref.ID, status, revised.Start, revised.End)
	} else {
		_, cmdErr = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET status=$2, updated_at=now() WHERE id=$1`, table), ref.ID, status)
	}
	return cmdErr
}

// NonTerminal returns rows whose status can still change, for the status
// sweep. Filtering of the actually-due rows happens in memory against
// the wall clock.
func (r *PGResourceRepository) NonTerminal(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE status <> ALL($1) ORDER BY id`, resourceColumns, table), terminalStatuses(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]domain.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows, kind)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *res)
	}
	return resources, rows.Err()
}

func terminalStatuses(kind domain.ResourceKind) []string {
	switch kind {
	case domain.KindFlight:
		return []string{string(domain.FlightLanded), string(domain.FlightCancelled)}
	case domain.KindTour:
		return []string{string(domain.TourCompleted), string(domain.TourCancelled)}
	default:
		return []string{string(domain.RoomClosed)}
	}
}

func (r *PGResourceRepository) Delete(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) error {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table), ref.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ ResourceRepository = (*PGResourceRepository)(nil)
