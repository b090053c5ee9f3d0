package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	UpdatesWebhook = "webhook"
	UpdatesPolling = "polling"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramTestEnv bool   `env:"TELEGRAM_TEST_ENV"`
	UpdatesMode     string `env:"TELEGRAM_UPDATES_MODE" envDefault:"webhook"`
	WebhookSecret   string `env:"TELEGRAM_WEBHOOK_SECRET"`

	AdminTGIDsRaw string         `env:"ADMIN_TG_IDS"`
	AdminTGIDs    map[int64]bool `env:"-"`

	PaymentProvider      string `env:"PAYMENT_PROVIDER" envDefault:"telegram"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET" envDefault:"change-me"`
	ExportSecret         string `env:"EXPORT_SECRET" envDefault:"change-me"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	BasePublicURL   string        `env:"BASE_PUBLIC_URL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"20"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"storefront.payments"`

	SpreadsheetID            string `env:"GOOGLE_SHEETS_SPREADSHEET_ID"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
}

func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}

	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.UpdatesMode = strings.ToLower(strings.TrimSpace(c.UpdatesMode))
	c.PaymentProvider = strings.ToLower(strings.TrimSpace(c.PaymentProvider))
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(c.BasePublicURL), "/")
	c.AdminTGIDs = parseAdminIDs(c.AdminTGIDsRaw)

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	if c.UpdatesMode != UpdatesWebhook && c.UpdatesMode != UpdatesPolling {
		return fmt.Errorf("invalid TELEGRAM_UPDATES_MODE: %s (must be 'webhook' or 'polling')", c.UpdatesMode)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is empty")
	}
	if c.PaymentProvider != "telegram" && c.PaymentProvider != "stub" {
		return fmt.Errorf("invalid PAYMENT_PROVIDER: %s (must be 'telegram' or 'stub')", c.PaymentProvider)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is empty")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is empty")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER: %s", c.StoreDriver)
	}

	if (c.SpreadsheetID == "") != (c.GoogleServiceAccountJSON == "") {
		return fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID and GOOGLE_SERVICE_ACCOUNT_JSON must be set together")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func (c Config) SheetsEnabled() bool {
	return c.SpreadsheetID != ""
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
