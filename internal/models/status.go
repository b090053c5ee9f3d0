package models

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// pending -> paid -> refunded, pending -> failed. Nothing else.
var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusFailed},
	StatusPaid:    {StatusRefunded},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return st, nil
	default:
		return "", fmt.Errorf("unknown payment status %q", s)
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the payment to next or returns ErrInvalidTransition without touching it.
func (p *Payment) Transition(next Status) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	return nil
}

func (p *Payment) MarkPaid(chargeID string, totalAmount int64, at time.Time) error {
	if err := p.Transition(StatusPaid); err != nil {
		return err
	}
	p.PaidAt = &at
	p.ExternalChargeID = chargeID
	p.TotalAmount = totalAmount
	return nil
}

func (p *Payment) MarkFailed() error {
	return p.Transition(StatusFailed)
}

func (p *Payment) MarkRefunded(at time.Time) error {
	if err := p.Transition(StatusRefunded); err != nil {
		return err
	}
	p.RefundedAt = &at
	return nil
}
