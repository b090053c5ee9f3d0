package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stars-shop/internal/catalog"
	"stars-shop/internal/config"
	"stars-shop/internal/events"
	"stars-shop/internal/metrics"
	"stars-shop/internal/middleware"
	"stars-shop/internal/models"
	"stars-shop/internal/payments/stub"
	"stars-shop/internal/shop"
	"stars-shop/internal/store"
	"stars-shop/internal/util"
)

type fakeBot struct {
	mu         sync.Mutex
	updates    []tgbotapi.Update
	webhookURL string
	deleted    bool
	notified   []string
	handleErr  error
}

func (b *fakeBot) HandleUpdate(_ context.Context, upd tgbotapi.Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, upd)
	return b.handleErr
}

func (b *fakeBot) SetWebhook(url string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.webhookURL = url
	return nil
}

func (b *fakeBot) DeleteWebhook(bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = true
	return nil
}

func (b *fakeBot) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{URL: b.webhookURL, PendingUpdateCount: 2, MaxConnections: 40}, nil
}

func (b *fakeBot) Me() (tgbotapi.User, error) {
	return tgbotapi.User{ID: 1, IsBot: true, UserName: "stars_shop_bot", FirstName: "Shop"}, nil
}

func (b *fakeBot) BuildHistoryCSV(_ context.Context, userID int64) (string, error) {
	return "payment_id,product_id\npay_1,digital-course-js\n", nil
}

func (b *fakeBot) NotifyPaid(p models.Payment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, p.ID)
	return nil
}

var premiumPack = models.Product{ID: "premium-pack", Name: "Premium Pack", Price: 7, Category: "Tools", InStock: true}

type fixture struct {
	logs   *observer.ObservedLogs
	srv    *Server
	router http.Handler
	bot    *fakeBot
	store  *store.Memory
	cfg    config.Config
}

func newFixture(t *testing.T, mutate ...func(*config.Config, *Deps)) *fixture {
	t.Helper()

	cfg := config.Config{
		AppEnv:               config.EnvDevelopment,
		HTTPAddr:             ":0",
		WebhookSecret:        "hook-secret",
		ExportSecret:         "export-secret",
		PaymentWebhookSecret: "stub-secret",
		RateLimitRPS:         1000,
		RateLimitBurst:       1000,
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	st := store.NewMemory()
	provider := stub.New(cfg.PaymentWebhookSecret, "")
	cat := catalog.New(append(catalog.Default().List(""), premiumPack))
	svc := shop.NewService(zap.NewNop(), st, cat, provider, events.Nop{}, m)
	bot := &fakeBot{}
	core, logs := observer.New(zapcore.DebugLevel)

	d := Deps{
		Config:         cfg,
		Shop:           svc,
		Bot:            bot,
		Provider:       provider,
		Metrics:        m,
		Logger:         zap.New(core),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	for _, fn := range mutate {
		fn(&cfg, &d)
	}
	d.Config = cfg

	srv := New(d)
	return &fixture{logs: logs, srv: srv, router: srv.Router(), bot: bot, store: st, cfg: cfg}
}

func (f *fixture) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, p models.Payment) {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), p))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.srv.SetNotReady()
	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready"}`, rec.Body.String())
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 11)

	rec = f.do(t, http.MethodGet, "/api/products?category=Design", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, p := range decode[[]models.Product](t, rec) {
		assert.Equal(t, "Design", p.Category)
	}

	rec = f.do(t, http.MethodGet, "/api/products/digital-course-js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "digital-course-js", decode[models.Product](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/products/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", errorOf(t, rec))

	rec = f.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All", decode[[]string](t, rec)[0])
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"unknown product", `{"userId":7,"productId":"nope","quantity":1}`, http.StatusNotFound, "Product not found"},
		{"out of stock", `{"userId":7,"productId":"web-dev-toolkit","quantity":1}`, http.StatusBadRequest, "Product is out of stock"},
		{"zero quantity", `{"userId":7,"productId":"digital-course-js","quantity":0}`, http.StatusBadRequest, ""},
		{"broken body", `{`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/payment/create-invoice", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, errorOf(t, rec))
			}
			if tt.name != "broken body" {
				warns := f.logs.FilterMessage("request rejected").FilterField(zap.Int("status", tt.status)).All()
				require.NotEmpty(t, warns)
				assert.Equal(t, zapcore.WarnLevel, warns[len(warns)-1].Level)
			}
		})
	}

	t.Run("issued", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/payment/create-invoice", `{"userId":7,"productId":"premium-pack","quantity":3}`)
		require.Equal(t, http.StatusOK, rec.Code)

		inv := decode[shop.Invoice](t, rec)
		assert.True(t, strings.HasPrefix(inv.PaymentID, "pay_"))
		assert.Contains(t, inv.InvoiceLink, "/pay/stub?")

		p, err := f.store.Get(context.Background(), inv.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, p.Status)
		assert.Equal(t, 3, p.Quantity)
		assert.Equal(t, int64(21), p.Amount)
	})
}

func TestPaymentStatusAndHistory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.Payment{ID: "pay_1", UserID: 7, ProductID: "digital-course-js", Quantity: 1, Amount: 1, Status: models.StatusPending})

	rec := f.do(t, http.MethodGet, "/api/payment/status/pay_1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusPending, decode[models.Payment](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/api/payment/status/pay_404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Payment not found", errorOf(t, rec))

	rec = f.do(t, http.MethodGet, "/api/payment/history/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Payment](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/payment/history/8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/payment/history/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user ID", errorOf(t, rec))
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.Payment{ID: "pay_pending", UserID: 7, Status: models.StatusPending})
	f.seed(t, models.Payment{ID: "pay_nocharge", UserID: 7, Status: models.StatusPaid})
	f.seed(t, models.Payment{ID: "pay_paid", UserID: 7, Status: models.StatusPaid, ExternalChargeID: "ch_1"})

	rec := f.do(t, http.MethodPost, "/api/payment/refund", `{"paymentId":"pay_pending"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only paid payments can be refunded", errorOf(t, rec))

	rec = f.do(t, http.MethodPost, "/api/payment/refund", `{"paymentId":"pay_nocharge"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment charge ID not found. Cannot process refund.", errorOf(t, rec))

	rec = f.do(t, http.MethodPost, "/api/payment/refund", `{"paymentId":"pay_404"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/payment/refund", `{"paymentId":"pay_paid"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["success"])

	p, err := f.store.Get(context.Background(), "pay_paid")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, p.Status)
	assert.NotNil(t, p.RefundedAt)
}

func TestWebhook(t *testing.T) {
	update := `{"update_id":10,"pre_checkout_query":{"id":"q1","from":{"id":7},"currency":"XTR","total_amount":1,"invoice_payload":"{}"}}`

	t.Run("rejects a wrong secret", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/webhook", update, secretTokenHeader, "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, f.bot.updates)
	})

	t.Run("rejects a broken body", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/webhook", "{", secretTokenHeader, "hook-secret")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("dispatches the update", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/webhook", update, secretTokenHeader, "hook-secret")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, f.bot.updates, 1)
		assert.Equal(t, "q1", f.bot.updates[0].PreCheckoutQuery.ID)
	})

	t.Run("answers 200 when handling fails", func(t *testing.T) {
		f := newFixture(t)
		f.bot.handleErr = errors.New("telegram down")
		rec := f.do(t, http.MethodPost, "/api/webhook", update, secretTokenHeader, "hook-secret")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no secret configured", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config, _ *Deps) { c.WebhookSecret = "" })
		rec := f.do(t, http.MethodPost, "/api/webhook", update)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWebhookManagement(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/set-webhook", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "webhookUrl is required", errorOf(t, rec))

	rec = f.do(t, http.MethodPost, "/api/set-webhook", `{"webhookUrl":"https://shop.example.com/api/webhook"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://shop.example.com/api/webhook", f.bot.webhookURL)

	rec = f.do(t, http.MethodGet, "/api/webhook-info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]any](t, rec)
	assert.Equal(t, true, info["isWebhookSet"])
	assert.EqualValues(t, 2, info["pendingUpdateCount"])
	assert.EqualValues(t, 40, info["maxConnections"])

	rec = f.do(t, http.MethodDelete, "/api/set-webhook", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.bot.deleted)
}

func TestDebug(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/debug", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "stub", body["provider"])
	assert.Equal(t, "stars_shop_bot", body["bot"].(map[string]any)["username"])
	assert.Equal(t, true, body["invoice_test"].(map[string]any)["success"])
}

func TestTestWebhook(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.Payment{ID: "pay_1", UserID: 7, Amount: 3, Status: models.StatusPending})

	rec := f.do(t, http.MethodPost, "/api/test-webhook", `{"type":"callback","paymentId":"pay_1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Invalid test type. Use "pre_checkout_query" or "successful_payment"`, errorOf(t, rec))

	rec = f.do(t, http.MethodPost, "/api/test-webhook", `{"type":"pre_checkout_query","paymentId":"pay_404"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/test-webhook", `{"type":"pre_checkout_query","paymentId":"pay_1","userId":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.bot.updates, 1)
	q := f.bot.updates[0].PreCheckoutQuery
	require.NotNil(t, q)
	assert.Equal(t, 3, q.TotalAmount)
	assert.JSONEq(t, `{"paymentId":"pay_1","userId":7}`, q.InvoicePayload)

	rec = f.do(t, http.MethodPost, "/api/test-webhook", `{"type":"successful_payment","paymentId":"pay_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.bot.updates, 2)
	sp := f.bot.updates[1].Message.SuccessfulPayment
	require.NotNil(t, sp)
	assert.Equal(t, "test_charge_pay_1", sp.TelegramPaymentChargeID)

	prod := newFixture(t, func(c *config.Config, _ *Deps) { c.AppEnv = config.EnvProduction })
	rec = prod.do(t, http.MethodPost, "/api/test-webhook", `{"type":"pre_checkout_query","paymentId":"pay_1"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStubCheckout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/payment/create-invoice", `{"userId":7,"productId":"digital-course-js","quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[shop.Invoice](t, rec)

	link, err := url.Parse(inv.InvoiceLink)
	require.NoError(t, err)
	sig := link.Query().Get("sig")

	rec = f.do(t, http.MethodGet, inv.InvoiceLink, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), inv.PaymentID)

	rec = f.do(t, http.MethodGet, "/pay/stub?invoice="+inv.PaymentID+"&sig=forged", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	confirm := func(status, sig string) *httptest.ResponseRecorder {
		form := url.Values{"invoice": {inv.PaymentID}, "sig": {sig}, "status": {status}}
		req := httptest.NewRequest(http.MethodPost, "/pay/stub/confirm", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, confirm("paid", "forged").Code)

	rec = confirm("paid", sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[map[string]any](t, rec)["status"])

	p, err := f.store.Get(context.Background(), inv.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, p.Status)
	assert.Equal(t, stub.ChargeID(inv.PaymentID), p.ExternalChargeID)

	// a repeated confirmation changes nothing and notifies nobody
	rec = confirm("paid", sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{inv.PaymentID}, f.bot.notified)

	rec = confirm("cancelled", sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStubCancel(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.Payment{ID: "pay_1", UserID: 7, Amount: 1, Status: models.StatusPending})

	form := url.Values{"invoice": {"pay_1"}, "sig": {f.srv.stub.Sign("pay_1")}, "status": {"cancelled"}}
	req := httptest.NewRequest(http.MethodPost, "/pay/stub/confirm", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	p, err := f.store.Get(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, p.Status)
	assert.Empty(t, f.bot.notified)

	form.Set("status", "paid")
	req = httptest.NewRequest(http.MethodPost, "/pay/stub/confirm", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment is not pending", errorOf(t, rec))
	p, err = f.store.Get(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, p.Status)
}

func TestExportHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/export/history.csv?user_id=7&token=bad", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/export/history.csv?user_id=abc&token=bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	token := util.HMACSHA256Hex("export-secret", "export:7")
	rec = f.do(t, http.MethodGet, "/export/history.csv?user_id=7&token="+token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments_7.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "payment_id,"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *Deps) { d.Limiter = middleware.NewRateLimiter(1, 1) })

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/categories", "").Code)
	rec := f.do(t, http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// health and the Telegram webhook stay outside the limiter
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/products/digital-course-js", "")
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shop_http_requests_total{method="GET",route="/api/products/{id}",status="200"} 1`)
}
