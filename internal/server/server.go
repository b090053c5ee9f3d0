package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stars-shop/internal/config"
	"stars-shop/internal/logger"
	"stars-shop/internal/metrics"
	"stars-shop/internal/middleware"
	"stars-shop/internal/models"
	"stars-shop/internal/payments"
	"stars-shop/internal/payments/stub"
	"stars-shop/internal/shop"
)

// Bot is what the HTTP layer needs from the Telegram side.
type Bot interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update) error
	SetWebhook(url string, dropPending bool) error
	DeleteWebhook(dropPending bool) error
	WebhookInfo() (tgbotapi.WebhookInfo, error)
	Me() (tgbotapi.User, error)
	BuildHistoryCSV(ctx context.Context, userID int64) (string, error)
	NotifyPaid(p models.Payment) error
}

type Deps struct {
	Config   config.Config
	Shop     *shop.Service
	Bot      Bot
	Provider payments.Provider
	Metrics  *metrics.Metrics
	Limiter  *middleware.RateLimiter
	Logger   *zap.Logger

	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
}

type Server struct {
	cfg      config.Config
	shop     *shop.Service
	bot      Bot
	provider payments.Provider
	stub     *stub.Provider
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	log      *zap.Logger
	promH    http.Handler

	notReady atomic.Bool
}

func New(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		shop:     d.Shop,
		bot:      d.Bot,
		provider: d.Provider,
		metrics:  d.Metrics,
		limiter:  d.Limiter,
		log:      d.Logger,
		promH:    d.MetricsHandler,
	}
	if sp, ok := d.Provider.(*stub.Provider); ok {
		s.stub = sp
	}
	if s.promH == nil {
		s.promH = promhttp.Handler()
	}
	if s.limiter == nil {
		s.limiter = middleware.NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst)
	}
	return s
}

// HTTPServer wraps the router in an http.Server bound to HTTP_ADDR.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// SetNotReady makes /health report 503, used while shutting down.
func (s *Server) SetNotReady() {
	s.notReady.Store(true)
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware(s.log))
	r.Use(s.observe)

	r.Get("/health", s.health)
	r.Handle("/metrics", s.promH)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get("/api/products", s.listProducts)
		r.Get("/api/products/{id}", s.getProduct)
		r.Get("/api/categories", s.listCategories)

		r.Route("/api/payment", func(r chi.Router) {
			r.Post("/create-invoice", s.createInvoice)
			r.Get("/status/{paymentId}", s.paymentStatus)
			r.Get("/history/{userId}", s.paymentHistory)
			r.Post("/refund", s.refund)
		})

		r.Get("/api/webhook-info", s.webhookInfo)
		r.Post("/api/set-webhook", s.setWebhook)
		r.Delete("/api/set-webhook", s.deleteWebhook)
		r.Get("/api/debug", s.debug)
		r.Post("/api/test-webhook", s.testWebhook)

		r.Get("/pay/stub", s.stubPage)
		r.Post("/pay/stub/confirm", s.stubConfirm)
		r.Get("/export/history.csv", s.exportHistory)
	})

	// Telegram retries on its own schedule; it is never rate limited.
	r.Post("/api/webhook", s.webhook)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe records request metrics labelled by the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
	})
}
