package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"stars-shop/internal/logger"
	"stars-shop/internal/models"
	"stars-shop/internal/payments"
	"stars-shop/internal/payments/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// webhook receives Telegram updates. Once the body parses, the answer is
// always 200 so Telegram does not redeliver; handler failures are logged.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context(), s.log)

	if s.cfg.WebhookSecret != "" {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) != 1 {
			log.Warn("webhook secret mismatch")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid update")
		return
	}

	if err := s.bot.HandleUpdate(r.Context(), upd); err != nil {
		log.Error("handle update", zap.Int("update_id", upd.UpdateID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type setWebhookRequest struct {
	WebhookURL         string `json:"webhookUrl"`
	DropPendingUpdates bool   `json:"dropPendingUpdates"`
}

func (s *Server) setWebhook(w http.ResponseWriter, r *http.Request) {
	var req setWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.WebhookURL = strings.TrimSpace(req.WebhookURL)
	if req.WebhookURL == "" {
		writeError(w, http.StatusBadRequest, "webhookUrl is required")
		return
	}

	if err := s.bot.SetWebhook(req.WebhookURL, req.DropPendingUpdates); err != nil {
		logger.FromCtx(r.Context(), s.log).Error("set webhook", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to set webhook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"webhookUrl": req.WebhookURL,
		"message":    "Webhook set successfully",
	})
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	drop := r.URL.Query().Get("drop_pending_updates") == "true"
	if err := s.bot.DeleteWebhook(drop); err != nil {
		logger.FromCtx(r.Context(), s.log).Error("delete webhook", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete webhook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Webhook deleted successfully",
	})
}

func (s *Server) webhookInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.bot.WebhookInfo()
	if err != nil {
		logger.FromCtx(r.Context(), s.log).Error("get webhook info", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get webhook info")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"webhookInfo":        info,
		"isWebhookSet":       info.IsSet(),
		"pendingUpdateCount": info.PendingUpdateCount,
		"lastErrorDate":      info.LastErrorDate,
		"lastErrorMessage":   info.LastErrorMessage,
		"maxConnections":     info.MaxConnections,
	})
}

// debug reports the bot identity and whether the provider can issue an invoice.
func (s *Server) debug(w http.ResponseWriter, r *http.Request) {
	me, err := s.bot.Me()
	if err != nil {
		logger.FromCtx(r.Context(), s.log).Error("get bot identity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reach Telegram")
		return
	}

	invoiceTest := map[string]any{"success": true}
	link, err := s.provider.CreateInvoiceLink(r.Context(), models.Invoice{
		PaymentID:   "debug_test",
		UserID:      me.ID,
		Title:       "Test Product",
		Description: "Test invoice",
		Payload:     `{"paymentId":"debug_test"}`,
		Label:       "Test",
		Amount:      1,
	})
	if err != nil {
		invoiceTest = map[string]any{"success": false, "error": err.Error()}
	} else {
		invoiceTest["invoiceLink"] = link
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bot": map[string]any{
			"id":        me.ID,
			"username":  me.UserName,
			"firstName": me.FirstName,
			"isBot":     me.IsBot,
		},
		"provider":     s.provider.Name(),
		"testEnv":      s.cfg.TelegramTestEnv,
		"invoice_test": invoiceTest,
	})
}

type testWebhookRequest struct {
	Type      string `json:"type"`
	PaymentID string `json:"paymentId"`
	UserID    int64  `json:"userId"`
}

// testWebhook pushes a synthetic update for an existing payment through the
// regular update handler.
func (s *Server) testWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.IsProduction() {
		writeError(w, http.StatusForbidden, "Test webhook is disabled in production")
		return
	}

	var req testWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type != "pre_checkout_query" && req.Type != "successful_payment" {
		writeError(w, http.StatusBadRequest, `Invalid test type. Use "pre_checkout_query" or "successful_payment"`)
		return
	}

	p, err := s.shop.Status(r.Context(), req.PaymentID)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to load payment")
		return
	}
	userID := req.UserID
	if userID == 0 {
		userID = p.UserID
	}
	payload, err := payments.EncodePayload(payments.Payload{PaymentID: p.ID, UserID: userID})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	from := &tgbotapi.User{ID: userID, FirstName: "Test"}
	upd := tgbotapi.Update{UpdateID: int(now.Unix())}
	if req.Type == "pre_checkout_query" {
		upd.PreCheckoutQuery = &tgbotapi.PreCheckoutQuery{
			ID:             "test_" + p.ID,
			From:           from,
			Currency:       telegram.CurrencyStars,
			TotalAmount:    int(p.Amount),
			InvoicePayload: payload,
		}
	} else {
		upd.Message = &tgbotapi.Message{
			MessageID: int(now.Unix()),
			From:      from,
			Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
			Date:      int(now.Unix()),
			SuccessfulPayment: &tgbotapi.SuccessfulPayment{
				Currency:                telegram.CurrencyStars,
				TotalAmount:             int(p.Amount),
				InvoicePayload:          payload,
				TelegramPaymentChargeID: "test_charge_" + p.ID,
			},
		}
	}

	if err := s.bot.HandleUpdate(r.Context(), upd); err != nil {
		logger.FromCtx(r.Context(), s.log).Error("handle test update", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process test update")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Test " + req.Type + " processed",
		"update":  upd,
	})
}
