package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/jackc/pgx/v5"
)

type BookingRepository interface {
	Create(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error
	GetByToken(ctx context.Context, token string) (*domain.Booking, error)
	GetByTokenForUpdate(ctx context.Context, tx pgx.Tx, token string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, from []domain.BookingStatus, to domain.BookingStatus) (bool, error)
	UpdateResource(ctx context.Context, tx pgx.Tx, id int64, ref domain.ResourceRef, priceCents int64) error
	ActiveByResource(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) ([]domain.Booking, error)
	HasCompletedPayment(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (bool, error)
	ExpiredPending(ctx context.Context, deadline time.Time, limit int) ([]domain.Booking, error)
	SetPaymentStatus(ctx context.Context, tx pgx.Tx, bookingID int64, status domain.PaymentStatus, amountCents int64) error
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
	DeleteByResource(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (int64, error)
}

type PGBookingRepository struct {
	db DBPool
}

func NewBookingRepository(db DBPool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `b.id, b.token, b.resource_kind, b.resource_id, b.user_id, b.units, b.total_price_cents, b.status, COALESCE(p.status, ''), b.payment_deadline, b.payment_due_now, b.email, b.created_at, b.updated_at`

const bookingJoin = `bookings b LEFT JOIN payments p ON p.booking_id = b.id`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Token, &b.Resource.Kind, &b.Resource.ID, &b.UserID, &b.Units, &b.TotalPriceCents, &b.Status, &b.PaymentStatus, &b.PaymentDeadline, &b.PaymentDueNow, &b.Email, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts the PENDING row inside the caller's transaction, so the
// insert commits or rolls back together with the ledger decrement.
func (r *PGBookingRepository) Create(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	booking.Status = domain.BookingStatusPending
	return tx.QueryRow(ctx, `INSERT INTO bookings (token, resource_kind, resource_id, user_id, units, total_price_cents, status, payment_deadline, payment_due_now, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		booking.Token, booking.Resource.Kind, booking.Resource.ID, booking.UserID, booking.Units, booking.TotalPriceCents, booking.Status, booking.PaymentDeadline, booking.PaymentDueNow, booking.Email).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
}

func (r *PGBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM `+bookingJoin+` WHERE b.token=$1`, token)
	return scanBooking(row)
}

func (r *PGBookingRepository) GetByTokenForUpdate(ctx context.Context, tx pgx.Tx, token string) (*domain.Booking, error) {
	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM `+bookingJoin+` WHERE b.token=$1 FOR UPDATE OF b`, token)
	return scanBooking(row)
}

// UpdateStatus applies a status change gated on the current status still
// being one of from. Returning false means another actor got there first,
// which release paths treat as an idempotent no-op.
func (r *PGBookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, from []domain.BookingStatus, to domain.BookingStatus) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	cmd, err := tx.Exec(ctx, `UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1 AND status = ANY($3)`, id, to, states)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PGBookingRepository) UpdateResource(ctx context.Context, tx pgx.Tx, id int64, ref domain.ResourceRef, priceCents int64) error {
	cmd, err := tx.Exec(ctx, `UPDATE bookings SET resource_kind=$2, resource_id=$3, total_price_cents=$4, updated_at=now() WHERE id=$1`, id, ref.Kind, ref.ID, priceCents)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ActiveByResource locks and returns every PENDING or CONFIRMED booking
// against the resource, for cascade cancellation.
func (r *PGBookingRepository) ActiveByResource(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) ([]domain.Booking, error) {
	rows, err := tx.Query(ctx, `SELECT `+bookingColumns+` FROM `+bookingJoin+` WHERE b.resource_kind=$1 AND b.resource_id=$2 AND b.status = ANY($3) FOR UPDATE OF b`,
		ref.Kind, ref.ID, []string{string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) HasCompletedPayment(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings b JOIN payments p ON p.booking_id = b.id WHERE b.resource_kind=$1 AND b.resource_id=$2 AND b.status = ANY($3) AND p.status=$4)`,
		ref.Kind, ref.ID, []string{string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed)}, domain.PaymentStatusCompleted).Scan(&exists)
	return exists, err
}

// ExpiredPending scans for bookings whose payment deadline elapsed. The
// rows are not mutated here: each one is released individually by the
// deadline sweep through the coordinator's idempotent path.
func (r *PGBookingRepository) ExpiredPending(ctx context.Context, deadline time.Time, limit int) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM `+bookingJoin+` WHERE b.status=$1 AND b.payment_deadline IS NOT NULL AND b.payment_deadline <= $2 ORDER BY b.payment_deadline LIMIT $3`,
		domain.BookingStatusPending, deadline, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *b)
	}
	return expired, rows.Err()
}

func (r *PGBookingRepository) SetPaymentStatus(ctx context.Context, tx pgx.Tx, bookingID int64, status domain.PaymentStatus, amountCents int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO payments (booking_id, status, amount_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (booking_id) DO UPDATE SET status=EXCLUDED.status, amount_cents=EXCLUDED.amount_cents, updated_at=now()`,
		bookingID, status, amountCents)
	return err
}

func (r *PGBookingRepository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	cmd, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByResource removes every booking row of a resource that is being
// deleted itself; payments go with them via the FK cascade.
func (r *PGBookingRepository) DeleteByResource(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (int64, error) {
	cmd, err := tx.Exec(ctx, `DELETE FROM bookings WHERE resource_kind=$1 AND resource_id=$2`, ref.Kind, ref.ID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
