package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stars-shop/internal/models"
)

type Type string

const (
	TypeCreated  Type = "payment.created"
	TypePaid     Type = "payment.paid"
	TypeFailed   Type = "payment.failed"
	TypeRefunded Type = "payment.refunded"
)

const eventVersion = 1

type PaymentEvent struct {
	EventID      string        `json:"event_id"`
	EventType    Type          `json:"event_type"`
	EventVersion int           `json:"event_version"`
	OccurredAt   time.Time     `json:"occurred_at"`
	PaymentID    string        `json:"payment_id"`
	UserID       int64         `json:"user_id"`
	ProductID    string        `json:"product_id"`
	Amount       int64         `json:"amount"`
	Status       models.Status `json:"status"`
	ChargeID     string        `json:"charge_id,omitempty"`
}

func NewPaymentEvent(t Type, p models.Payment, at time.Time) PaymentEvent {
	return PaymentEvent{
		EventID:      uuid.New().String(),
		EventType:    t,
		EventVersion: eventVersion,
		OccurredAt:   at.UTC(),
		PaymentID:    p.ID,
		UserID:       p.UserID,
		ProductID:    p.ProductID,
		Amount:       p.Amount,
		Status:       p.Status,
		ChargeID:     p.ExternalChargeID,
	}
}

// Publisher delivers payment lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e PaymentEvent) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, PaymentEvent) error { return nil }

func (Nop) Close() error { return nil }
