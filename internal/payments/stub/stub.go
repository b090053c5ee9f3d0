package stub

import (
	"context"
	"net/url"
	"strings"

	"stars-shop/internal/models"
	"stars-shop/internal/util"
)

// Stub provider:
// - CreateInvoiceLink: link to the local /pay/stub page, signed with HMAC SHA-256
// - Refund: always succeeds
type Provider struct {
	secret  string
	baseURL string
}

func New(secret, baseURL string) *Provider {
	return &Provider{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return "stub" }

func (p *Provider) CreateInvoiceLink(_ context.Context, inv models.Invoice) (string, error) {
	q := url.Values{}
	q.Set("invoice", inv.PaymentID)
	q.Set("sig", p.Sign(inv.PaymentID))

	link := "/pay/stub?" + q.Encode()
	if p.baseURL != "" {
		link = p.baseURL + link
	}
	return link, nil
}

func (p *Provider) Refund(context.Context, int64, string) error { return nil }

func (p *Provider) Sign(invoice string) string {
	return util.HMACSHA256Hex(p.secret, "stub:"+invoice)
}

// Verify reports whether sig was issued by this provider for invoice.
func (p *Provider) Verify(invoice, sig string) bool {
	return util.ValidHMAC(p.secret, "stub:"+invoice, sig)
}

// ChargeID is the synthetic charge id recorded for a stub payment.
func ChargeID(invoice string) string {
	return "stub_" + invoice
}
