package domain

import "time"

const (
	paymentWindowShort = 30 * time.Minute
	paymentWindowNear  = 2 * time.Hour
	paymentLeadTime    = 24 * time.Hour
)

// PaymentDeadline computes when a new booking must be paid. Bookings for
// windows starting within two hours must be paid immediately (short
// deadline, dueNow flag set); within a day the deadline is two hours;
// otherwise payment is due a day before the window opens.
func PaymentDeadline(now, windowStart time.Time) (deadline time.Time, dueNow bool) {
	until := windowStart.Sub(now)
	switch {
	case until <= 2*time.Hour:
		return now.Add(paymentWindowShort), true
	case until <= 24*time.Hour:
		return now.Add(paymentWindowNear), false
	default:
		return windowStart.Add(-paymentLeadTime), false
	}
}
