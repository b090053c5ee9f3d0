package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"stars-shop/internal/models"
)

const maxTxRetries = 10

// Redis stores each payment as JSON under payment:<id> and indexes it in the
// user_payments:<userId> sorted set scored by creation time.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client), nil
}

func paymentKey(id string) string {
	return fmt.Sprintf("payment:%s", id)
}

func userPaymentsKey(userID int64) string {
	return "user_payments:" + strconv.FormatInt(userID, 10)
}

// Create writes the payment and its user index in one MULTI, guarded by a
// WATCH on the payment key so a concurrent create with the same id fails.
func (r *Redis) Create(ctx context.Context, p models.Payment) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payment: %w", err)
	}
	key := paymentKey(p.ID)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, userPaymentsKey(p.UserID), redis.Z{
				Score:  float64(p.CreatedAt.UnixMilli()),
				Member: p.ID,
			})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrAlreadyExists) {
			return ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	}
	return fmt.Errorf("create payment %s: too much contention", p.ID)
}

func (r *Redis) Get(ctx context.Context, id string) (models.Payment, error) {
	data, err := r.client.Get(ctx, paymentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Payment{}, ErrNotFound
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return decodePayment(data)
}

func (r *Redis) Update(ctx context.Context, id string, fn UpdateFunc) (models.Payment, error) {
	key := paymentKey(id)

	var (
		result models.Payment
		fnErr  error
	)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := decodePayment(data)
		if err != nil {
			return err
		}

		next := clonePayment(cur)
		if err := fn(&next); err != nil {
			result, fnErr = cur, err
			return nil
		}
		next.ID = id

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode payment: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result, fnErr = next, nil
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return models.Payment{}, ErrNotFound
		}
		if err != nil {
			return models.Payment{}, fmt.Errorf("update payment: %w", err)
		}
		return result, fnErr
	}
	return models.Payment{}, fmt.Errorf("update payment %s: too much contention", id)
}

func (r *Redis) ListByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	ids, err := r.client.ZRevRange(ctx, userPaymentsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list payment ids: %w", err)
	}
	if len(ids) == 0 {
		return []models.Payment{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = paymentKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	out := make([]models.Payment, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodePayment([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func decodePayment(data []byte) (models.Payment, error) {
	var p models.Payment
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Payment{}, fmt.Errorf("decode payment: %w", err)
	}
	return p, nil
}
