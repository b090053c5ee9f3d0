package payments

import (
	"context"

	"stars-shop/internal/models"
)

type Provider interface {
	Name() string

	// CreateInvoiceLink returns a link the client opens to pay the invoice.
	CreateInvoiceLink(ctx context.Context, inv models.Invoice) (string, error)

	// Refund returns the charge identified by chargeID to the user.
	Refund(ctx context.Context, userID int64, chargeID string) error
}
