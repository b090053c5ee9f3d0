package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stars-shop/internal/config"
	"stars-shop/internal/models"
)

var (
	ErrNotFound      = errors.New("payment not found")
	ErrAlreadyExists = errors.New("payment already exists")
)

// UpdateFunc mutates the payment in place. Returning an error aborts the update
// and nothing is written.
type UpdateFunc func(p *models.Payment) error

// Store keeps payment records. Update is an atomic read-modify-write: two
// concurrent Updates of the same id never both observe the same prior state.
type Store interface {
	Create(ctx context.Context, p models.Payment) error
	Get(ctx context.Context, id string) (models.Payment, error)
	// Update returns the stored record after fn ran. When fn fails the
	// unchanged record is returned together with fn's error.
	Update(ctx context.Context, id string, fn UpdateFunc) (models.Payment, error)
	// ListByUser returns the user's payments, newest first.
	ListByUser(ctx context.Context, userID int64) ([]models.Payment, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by STORE_DRIVER.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		log.Info("using in-memory payment store")
		return NewMemory(), nil
	case config.StorePostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("using postgres payment store")
		return s, nil
	case config.StoreRedis:
		s, err := OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info("using redis payment store", zap.String("addr", cfg.RedisAddr))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}
