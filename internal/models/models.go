package models

import "time"

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"` // Stars
	Image       string `json:"image,omitempty"`
	Category    string `json:"category"`
	InStock     bool   `json:"inStock"`
}

// Payment is one invoice issued to a user and everything that happened to it afterwards.
type Payment struct {
	ID          string    `json:"paymentId"`
	UserID      int64     `json:"userId"`
	ProductID   string    `json:"productId"`
	Quantity    int       `json:"quantity"`
	Amount      int64     `json:"amount"`
	Status      Status    `json:"status"`
	InvoiceLink string    `json:"invoiceLink,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	PaidAt     *time.Time `json:"paidAt,omitempty"`
	RefundedAt *time.Time `json:"refundedAt,omitempty"`

	// telegram_payment_charge_id from successful_payment, needed for refunds
	ExternalChargeID string `json:"telegramPaymentChargeId,omitempty"`
	// total_amount as reported by Telegram
	TotalAmount int64 `json:"totalAmount,omitempty"`
}

// Invoice is what a payment provider needs to issue a payment link.
type Invoice struct {
	PaymentID   string
	UserID      int64
	Title       string
	Description string
	Payload     string
	Label       string
	Amount      int64 // total in Stars
	PhotoURL    string
}
