package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stars-shop/internal/models"
)

// CurrencyStars is the Telegram Stars currency code. Stars invoices carry an
// empty provider token.
const CurrencyStars = "XTR"

// Requester is the slice of *tgbotapi.BotAPI the provider needs. The library
// has no typed configs for the Stars methods, so they go through MakeRequest.
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

type Provider struct {
	api Requester
}

func New(api Requester) *Provider {
	return &Provider{api: api}
}

func (p *Provider) Name() string { return "telegram" }

func (p *Provider) CreateInvoiceLink(ctx context.Context, inv models.Invoice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	label := inv.Label
	if label == "" {
		label = inv.Title
	}

	params := tgbotapi.Params{}
	params.AddNonEmpty("title", inv.Title)
	params.AddNonEmpty("description", inv.Description)
	params.AddNonEmpty("payload", inv.Payload)
	params["provider_token"] = ""
	params.AddNonEmpty("currency", CurrencyStars)
	if err := params.AddInterface("prices", []tgbotapi.LabeledPrice{{Label: label, Amount: int(inv.Amount)}}); err != nil {
		return "", fmt.Errorf("encode prices: %w", err)
	}
	params.AddNonEmpty("photo_url", inv.PhotoURL)

	resp, err := p.api.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return "", fmt.Errorf("createInvoiceLink: %w", err)
	}

	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("createInvoiceLink result: %w", err)
	}
	if link == "" {
		return "", fmt.Errorf("createInvoiceLink returned an empty link")
	}
	return link, nil
}

func (p *Provider) Refund(ctx context.Context, userID int64, chargeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("user_id", userID)
	params.AddNonEmpty("telegram_payment_charge_id", chargeID)

	resp, err := p.api.MakeRequest("refundStarPayment", params)
	if err != nil {
		return fmt.Errorf("refundStarPayment: %w", err)
	}

	var ok bool
	if err := json.Unmarshal(resp.Result, &ok); err != nil || !ok {
		return fmt.Errorf("refundStarPayment was not confirmed")
	}
	return nil
}
