package events

import (
	"context"
	"errors"
)

// Multi publishes every event to all publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e PaymentEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
