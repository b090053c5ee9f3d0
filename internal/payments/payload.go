package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxPayloadBytes is Telegram's limit for invoice_payload.
const MaxPayloadBytes = 128

var ErrInvalidPayload = errors.New("invalid invoice payload")

// Payload travels through Telegram and comes back in pre_checkout_query and
// successful_payment.
type Payload struct {
	PaymentID string `json:"paymentId"`
	UserID    int64  `json:"userId"`
}

func EncodePayload(p Payload) (string, error) {
	if p.PaymentID == "" || p.UserID == 0 {
		return "", fmt.Errorf("%w: paymentId and userId are required", ErrInvalidPayload)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	if len(b) > MaxPayloadBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPayload, len(b), MaxPayloadBytes)
	}
	return string(b), nil
}

func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.PaymentID) == "" {
		return Payload{}, fmt.Errorf("%w: missing paymentId", ErrInvalidPayload)
	}
	return p, nil
}
