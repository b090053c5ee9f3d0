package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"stars-shop/internal/config"
	"stars-shop/internal/models"
	"stars-shop/internal/payments"
	"stars-shop/internal/shop"
	"stars-shop/internal/util"
)

const (
	msgValidationFailed = "Payment validation failed"
	msgProcessingError  = "Payment processing error"

	welcomeText = "Welcome to our Digital Shop! 🛒\n\n" +
		"Browse and purchase digital products using Telegram Stars. " +
		"Open our mini app to start shopping!"

	historyLimit = 10
)

// BotAPI is the part of *tgbotapi.BotAPI the app uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	GetMe() (tgbotapi.User, error)
}

type App struct {
	cfg  config.Config
	bot  BotAPI
	shop *shop.Service
	log  *zap.Logger
}

// NewBotAPI connects to the production Bot API or, with TELEGRAM_TEST_ENV, to
// the Telegram test environment.
func NewBotAPI(cfg config.Config) (*tgbotapi.BotAPI, error) {
	endpoint := tgbotapi.APIEndpoint
	if cfg.TelegramTestEnv {
		endpoint = TestAPIEndpoint
	}
	b, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramToken, endpoint)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return b, nil
}

// TestAPIEndpoint is the Bot API endpoint of the Telegram test environment.
const TestAPIEndpoint = "https://api.telegram.org/bot%s/test/%s"

func New(cfg config.Config, bot BotAPI, svc *shop.Service, log *zap.Logger) *App {
	return &App{
		cfg:  cfg,
		bot:  bot,
		shop: svc,
		log:  log.With(zap.String("component", "tgbot")),
	}
}

// Run consumes updates with long polling until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = AllowedUpdates

	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := a.HandleUpdate(ctx, upd); err != nil {
				a.log.Error("handle update", zap.Error(err), zap.Int("update_id", upd.UpdateID))
			}
		}
	}
}

// HandleUpdate dispatches one update. It is used by both polling and the webhook.
func (a *App) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	switch {
	case upd.PreCheckoutQuery != nil:
		return a.handlePreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.Message != nil && upd.Message.SuccessfulPayment != nil:
		return a.handleSuccessfulPayment(ctx, upd.Message)
	case upd.Message != nil:
		return a.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		return a.handleCallback(ctx, upd.CallbackQuery)
	}
	return nil
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// ---------- Payments ----------

func (a *App) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) error {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}

	if err := a.shop.ValidatePreCheckout(ctx, q.InvoicePayload); err != nil {
		answer.OK = false
		answer.ErrorMessage = preCheckoutErrorMessage(err)
		a.log.Warn("pre-checkout rejected",
			zap.Error(err),
			zap.String("query_id", q.ID),
			zap.Int64("user_id", fromID(q.From)),
		)
	}

	if _, err := a.bot.Request(answer); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

func preCheckoutErrorMessage(err error) string {
	if errors.Is(err, payments.ErrInvalidPayload) {
		return msgProcessingError
	}
	if errors.Is(err, shop.ErrPaymentNotFound) || errors.Is(err, shop.ErrInvalidRequest) || errors.Is(err, shop.ErrNotPending) {
		return msgValidationFailed
	}
	return msgProcessingError
}

func (a *App) handleSuccessfulPayment(ctx context.Context, m *tgbotapi.Message) error {
	sp := m.SuccessfulPayment

	p, applied, err := a.shop.CompletePayment(ctx, shop.Completion{
		Payload:     sp.InvoicePayload,
		ChargeID:    sp.TelegramPaymentChargeID,
		TotalAmount: int64(sp.TotalAmount),
	})
	if err != nil {
		return err
	}
	// only the delivery that actually paid the record is confirmed
	if !applied {
		return nil
	}

	return a.SendText(m.Chat.ID, confirmationText(p.ID, sp.TotalAmount))
}

// NotifyPaid sends the purchase confirmation for a payment completed outside
// the Telegram update flow.
func (a *App) NotifyPaid(p models.Payment) error {
	return a.SendText(p.UserID, confirmationText(p.ID, int(p.TotalAmount)))
}

func confirmationText(paymentID string, totalAmount int) string {
	return fmt.Sprintf("🎉 Payment successful! Thank you for your purchase.\n\n"+
		"Payment ID: %s\n"+
		"Amount: %d ⭐\n\n"+
		"Your digital product will be available in the app.",
		util.Tail(paymentID, 8), totalAmount)
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil || !m.IsCommand() {
		return nil
	}
	tgID := m.From.ID

	switch m.Command() {
	case "start":
		return a.SendText(m.Chat.ID, welcomeText)
	case "payments":
		return a.showPayments(ctx, m.Chat.ID, tgID)
	case "admin":
		if !a.isAdmin(tgID) {
			return a.SendText(m.Chat.ID, "Access denied.")
		}
		return a.showAdminMenu(m.Chat.ID)
	case "refund":
		if !a.isAdmin(tgID) {
			return a.SendText(m.Chat.ID, "Access denied.")
		}
		return a.refund(ctx, m.Chat.ID, strings.TrimSpace(m.CommandArguments()))
	case "export":
		if !a.isAdmin(tgID) {
			return a.SendText(m.Chat.ID, "Access denied.")
		}
		return a.sendExportLink(m.Chat.ID, strings.TrimSpace(m.CommandArguments()))
	}
	return nil
}

func (a *App) showPayments(ctx context.Context, chatID, tgID int64) error {
	list, err := a.shop.History(ctx, tgID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return a.SendText(chatID, "You have no purchases yet.")
	}
	if len(list) > historyLimit {
		list = list[:historyLimit]
	}

	b := strings.Builder{}
	b.WriteString("🧾 Your payments:\n")
	for _, p := range list {
		b.WriteString(fmt.Sprintf("\n%s · %s · %d ⭐ · %s",
			util.Tail(p.ID, 8), p.ProductID, p.Amount, statusLabel(p.Status)))
	}
	return a.SendText(chatID, b.String())
}

func statusLabel(s models.Status) string {
	switch s {
	case models.StatusPaid:
		return "✅ paid"
	case models.StatusPending:
		return "⏳ pending"
	case models.StatusRefunded:
		return "↩️ refunded"
	case models.StatusFailed:
		return "❌ failed"
	}
	return string(s)
}

func (a *App) refund(ctx context.Context, chatID int64, paymentID string) error {
	if paymentID == "" {
		return a.SendText(chatID, "Usage: /refund <paymentId>")
	}

	p, err := a.shop.Refund(ctx, paymentID)
	switch {
	case errors.Is(err, shop.ErrPaymentNotFound):
		return a.SendText(chatID, "Payment not found.")
	case errors.Is(err, shop.ErrNotRefundable), errors.Is(err, shop.ErrMissingChargeID):
		return a.SendText(chatID, "Refund rejected: "+err.Error())
	case err != nil:
		a.log.Error("admin refund failed", zap.Error(err), zap.String("payment_id", paymentID))
		return a.SendText(chatID, "Refund failed, try again later.")
	}

	if err := a.SendText(p.UserID, fmt.Sprintf("↩️ Your payment %s was refunded: %d ⭐", util.Tail(p.ID, 8), p.Amount)); err != nil {
		a.log.Warn("notify refunded user", zap.Error(err), zap.Int64("user_id", p.UserID))
	}
	return a.SendText(chatID, "Refund processed successfully.")
}

// ---------- Admin ----------

func (a *App) showAdminMenu(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🛠 Admin menu\n\n/refund <paymentId> — refund a paid payment\n/export <userId> — CSV link with a user's payments")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Webhook status", "a:webhook"),
			tgbotapi.NewInlineKeyboardButtonData("🤖 Bot info", "a:me"),
		),
	)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	tgID := fromID(q.From)

	// ack
	cb := tgbotapi.NewCallback(q.ID, "")
	_, _ = a.bot.Request(cb)

	if !strings.HasPrefix(q.Data, "a:") {
		return nil
	}
	if !a.isAdmin(tgID) {
		return a.SendText(tgID, "Access denied.")
	}

	switch q.Data {
	case "a:webhook":
		info, err := a.WebhookInfo()
		if err != nil {
			return err
		}
		text := fmt.Sprintf("URL: %s\nPending updates: %d", orDash(info.URL), info.PendingUpdateCount)
		if info.LastErrorMessage != "" {
			text += "\nLast error: " + info.LastErrorMessage
		}
		return a.SendText(tgID, text)
	case "a:me":
		me, err := a.Me()
		if err != nil {
			return err
		}
		return a.SendText(tgID, fmt.Sprintf("@%s (id %d), provider: %s", me.UserName, me.ID, a.shop.ProviderName()))
	}
	return nil
}

func (a *App) sendExportLink(chatID int64, rawUserID string) error {
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil || userID == 0 {
		return a.SendText(chatID, "Usage: /export <userId>")
	}
	return a.SendText(chatID, "📄 "+ExportURL(a.cfg, userID))
}

// ExportURL is the signed CSV export link for a user's payment history.
func ExportURL(cfg config.Config, userID int64) string {
	id := strconv.FormatInt(userID, 10)
	token := util.HMACSHA256Hex(cfg.ExportSecret, "export:"+id)
	return cfg.BasePublicURL + "/export/history.csv?user_id=" + id + "&token=" + token
}

func fromID(u *tgbotapi.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
