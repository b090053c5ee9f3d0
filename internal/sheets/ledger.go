package sheets

import (
	"context"
	"fmt"
	"time"

	"stars-shop/internal/events"
)

// Ledger mirrors payment events into the Payments sheet, one row per payment:
// payment_id | user_id | product_id | amount | status | charge_id | updated_at
type Ledger struct {
	c *Client
}

func NewLedger(c *Client) *Ledger {
	return &Ledger{c: c}
}

func (l *Ledger) Publish(ctx context.Context, e events.PaymentEvent) error {
	updatedAt := e.OccurredAt.Format(time.RFC3339)

	if e.EventType == events.TypeCreated {
		return l.c.appendRow(ctx, SheetPayments, []interface{}{
			e.PaymentID, e.UserID, e.ProductID, e.Amount, string(e.Status), e.ChargeID, updatedAt,
		})
	}

	rowNum, err := l.c.findRow(ctx, SheetPayments, e.PaymentID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if rowNum == 0 {
		return fmt.Errorf("ledger row for %s not found", e.PaymentID)
	}
	// columns E..G = status, charge_id, updated_at
	a1 := fmt.Sprintf("E%d:G%d", rowNum, rowNum)
	return l.c.updateRange(ctx, SheetPayments, a1, []interface{}{string(e.Status), e.ChargeID, updatedAt})
}

func (l *Ledger) Close() error { return nil }
