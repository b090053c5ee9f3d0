package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stars-shop/internal/catalog"
	"stars-shop/internal/config"
	"stars-shop/internal/events"
	"stars-shop/internal/logger"
	"stars-shop/internal/metrics"
	"stars-shop/internal/middleware"
	"stars-shop/internal/payments"
	"stars-shop/internal/server"
	"stars-shop/internal/sheets"
	"stars-shop/internal/shop"
	"stars-shop/internal/shutdown"
	"stars-shop/internal/store"
	"stars-shop/internal/tgbot"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync(lg)

	if err := run(cfg, lg); err != nil {
		lg.Fatal("storefront stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sd := shutdown.New(cfg.ShutdownTimeout, lg)

	st, err := store.Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	sd.Add("store", shutdown.Closer(st))

	var sheetsClient *sheets.Client
	if cfg.SheetsEnabled() {
		sheetsClient, err = sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
		if err != nil {
			return err
		}
	}
	cat := loadCatalog(ctx, sheetsClient, lg)

	api, err := tgbot.NewBotAPI(cfg)
	if err != nil {
		return err
	}
	lg.Info("authorized on telegram", zap.String("username", api.Self.UserName), zap.Bool("test_env", cfg.TelegramTestEnv))

	provider, err := payments.NewProvider(cfg, api)
	if err != nil {
		return err
	}

	publisher := newPublisher(cfg, sheetsClient, lg)
	sd.Add("events", shutdown.Closer(publisher))

	m := metrics.New()
	svc := shop.NewService(lg, st, cat, provider, publisher, m)
	bot := tgbot.New(cfg, api, svc, lg)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunCleanup(ctx, 5*time.Minute)

	srv := server.New(server.Deps{
		Config:   cfg,
		Shop:     svc,
		Bot:      bot,
		Provider: provider,
		Metrics:  m,
		Limiter:  limiter,
		Logger:   lg,
	})
	httpSrv := srv.HTTPServer()

	go func() {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("provider", provider.Name()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server", zap.Error(err))
			cancel()
		}
	}()
	sd.Add("http", shutdown.HTTPServer(httpSrv))

	if cfg.UpdatesMode == config.UpdatesPolling {
		// getUpdates is refused while a webhook is registered
		if err := bot.DeleteWebhook(false); err != nil {
			lg.Warn("delete webhook before polling", zap.Error(err))
		}
		go func() {
			lg.Info("telegram long polling started")
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("bot stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Info("telegram updates expected on /api/webhook")
	}

	sd.Add("readiness", func(context.Context) error {
		srv.SetNotReady()
		cancel()
		return nil
	})

	return sd.Wait(ctx)
}

// loadCatalog prefers the Products sheet and falls back to the built-in list.
func loadCatalog(ctx context.Context, c *sheets.Client, lg *zap.Logger) *catalog.Catalog {
	if c == nil {
		return catalog.Default()
	}
	products, err := c.ListProducts(ctx)
	if err != nil || len(products) == 0 {
		lg.Warn("products sheet unavailable, using built-in catalog", zap.Error(err))
		return catalog.Default()
	}
	cat := catalog.New(products)
	lg.Info("catalog loaded from sheets",
		zap.String("spreadsheet_id", c.SpreadsheetID()),
		zap.Int("products", cat.Len()))
	return cat
}

func newPublisher(cfg config.Config, c *sheets.Client, lg *zap.Logger) events.Publisher {
	var pubs events.Multi
	if cfg.KafkaEnabled() {
		pubs = append(pubs, events.NewKafkaPublisher(lg, cfg.KafkaBrokers, cfg.KafkaTopic))
		lg.Info("payment events go to kafka", zap.String("topic", cfg.KafkaTopic))
	}
	if c != nil {
		pubs = append(pubs, sheets.NewLedger(c))
		lg.Info("payment events go to the sheets ledger")
	}
	if len(pubs) == 0 {
		return events.Nop{}
	}
	return pubs
}
