package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type Booking struct {
	ID              int64
	Token           string
	Resource        ResourceRef
	UserID          int64
	Units           int
	TotalPriceCents int64
	Status          BookingStatus
	PaymentStatus   PaymentStatus // zero value means no payment row exists
	PaymentDeadline *time.Time
	PaymentDueNow   bool
	Email           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Active reports whether the booking still holds ledger units.
func (b *Booking) Active() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

func (b *Booking) Terminal() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusCompleted
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

// CanTransition validates a booking status change against the transition
// table and the payment gating rules. A booking whose payment is COMPLETED
// can never move into PENDING or CANCELLED without an explicit refund.
func (b *Booking) CanTransition(to BookingStatus) error {
	allowed := false
	for _, s := range bookingTransitions[b.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return Conflictf("booking status %s cannot change to %s", b.Status, to)
	}
	if (to == BookingStatusPending || to == BookingStatusCancelled) && b.PaymentStatus == PaymentStatusCompleted {
		return Conflict("booking payment is completed, refund required first")
	}
	return nil
}

// CanMutateResource gates updates that change which resource the booking
// points to, or its price.
func (b *Booking) CanMutateResource() error {
	if b.Terminal() {
		return Conflictf("booking is %s and can no longer be modified", b.Status)
	}
	return nil
}

// CanDelete gates row removal. A confirmed booking for a window still in
// the future must be cancelled, not deleted.
func (b *Booking) CanDelete(windowStart, now time.Time) error {
	if b.Status == BookingStatusCompleted {
		return Conflict("completed booking cannot be deleted")
	}
	if b.PaymentStatus == PaymentStatusCompleted {
		return Conflict("booking payment is completed, refund required first")
	}
	if b.Status == BookingStatusConfirmed && windowStart.After(now) {
		return Conflict("confirmed booking with upcoming start must be cancelled, not deleted")
	}
	return nil
}
