package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaymentDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("imminent start pays within 30 minutes", func(t *testing.T) {
		deadline, dueNow := PaymentDeadline(now, now.Add(90*time.Minute))
		assert.True(t, dueNow)
		assert.Equal(t, now.Add(30*time.Minute), deadline)
	})

	t.Run("start within a day pays within two hours", func(t *testing.T) {
		deadline, dueNow := PaymentDeadline(now, now.Add(10*time.Hour))
		assert.False(t, dueNow)
		assert.Equal(t, now.Add(2*time.Hour), deadline)
	})

	t.Run("distant start pays a day before", func(t *testing.T) {
		start := now.Add(7 * 24 * time.Hour)
		deadline, dueNow := PaymentDeadline(now, start)
		assert.False(t, dueNow)
		assert.Equal(t, start.Add(-24*time.Hour), deadline)
	})

	t.Run("start already passed still yields a short deadline", func(t *testing.T) {
		deadline, dueNow := PaymentDeadline(now, now.Add(-time.Hour))
		assert.True(t, dueNow)
		assert.Equal(t, now.Add(30*time.Minute), deadline)
	})
}
