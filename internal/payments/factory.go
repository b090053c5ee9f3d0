package payments

import (
	"fmt"

	"stars-shop/internal/config"
	"stars-shop/internal/payments/stub"
	"stars-shop/internal/payments/telegram"
)

func NewProvider(cfg config.Config, api telegram.Requester) (Provider, error) {
	switch cfg.PaymentProvider {
	case "telegram":
		if api == nil {
			return nil, fmt.Errorf("telegram payment provider needs a bot api client")
		}
		return telegram.New(api), nil
	case "stub":
		return stub.New(cfg.PaymentWebhookSecret, cfg.BasePublicURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}
