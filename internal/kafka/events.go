package kafka

import "time"

// BookingEvent is published on every booking lifecycle change
// (booking_created, booking_confirmed, booking_cancelled,
// booking_expired, booking_completed, booking_transferred).
type BookingEvent struct {
	Type            string     `json:"type"`
	Token           string     `json:"token"`
	ResourceKind    string     `json:"resource_kind"`
	ResourceID      int64      `json:"resource_id"`
	UserID          int64      `json:"user_id"`
	Units           int        `json:"units"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	TotalPriceCents int64      `json:"total_price_cents"`
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
}

// ResourceEvent is published when a resource status change cascades into
// bookings (resource_cancelled) or a bulk reconciliation ran.
type ResourceEvent struct {
	Type              string `json:"type"`
	ResourceKind      string `json:"resource_kind"`
	ResourceID        int64  `json:"resource_id"`
	Status            string `json:"status"`
	CancelledBookings int    `json:"cancelled_bookings,omitempty"`
}
