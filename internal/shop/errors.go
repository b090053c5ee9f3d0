package shop

import "errors"

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNotRefundable   = errors.New("only paid payments can be refunded")
	ErrMissingChargeID = errors.New("payment charge id not found, cannot process refund")
	ErrNotPending      = errors.New("payment is not pending")
	ErrProvider        = errors.New("payment provider failure")
)
