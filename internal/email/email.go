package email

import (
	"context"
	"log"

	"github.com/Domenick1991/travelbook/internal/kafka"
)

// Sender is the notification sink for booking lifecycle events. The
// real delivery backend sits behind an SMTP relay; this logs the intent
// so the worker pipeline is observable end to end.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	log.Printf("email: notify %s about %s for %s/%d (%d units, status %s)",
		event.Email, event.Type, event.ResourceKind, event.ResourceID, event.Units, event.Status)
	return nil
}
