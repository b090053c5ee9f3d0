package tgbot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const historyCSVHeader = "payment_id,product_id,quantity,amount,status,created_at,paid_at,refunded_at,charge_id"

// BuildHistoryCSV renders a user's payments, newest first.
func (a *App) BuildHistoryCSV(ctx context.Context, userID int64) (string, error) {
	list, err := a.shop.History(ctx, userID)
	if err != nil {
		return "", err
	}

	b := strings.Builder{}
	b.WriteString(historyCSVHeader)
	for _, p := range list {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,%s,%s,%s,%s",
			escapeCSV(p.ID),
			escapeCSV(p.ProductID),
			p.Quantity,
			p.Amount,
			p.Status,
			p.CreatedAt.Format(time.RFC3339),
			formatTime(p.PaidAt),
			formatTime(p.RefundedAt),
			escapeCSV(p.ExternalChargeID),
		))
	}
	b.WriteString("\n")
	return b.String(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func escapeCSV(s string) string {
	s = strings.ReplaceAll(s, `"`, `""`)
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + s + `"`
	}
	return s
}
