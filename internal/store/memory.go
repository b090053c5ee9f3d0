package store

import (
	"context"
	"sort"
	"sync"

	"stars-shop/internal/models"
)

type Memory struct {
	mu       sync.RWMutex
	payments map[string]models.Payment
}

func NewMemory() *Memory {
	return &Memory{payments: map[string]models.Payment{}}
}

func (m *Memory) Create(_ context.Context, p models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[p.ID]; ok {
		return ErrAlreadyExists
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return models.Payment{}, ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *Memory) Update(_ context.Context, id string, fn UpdateFunc) (models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.payments[id]
	if !ok {
		return models.Payment{}, ErrNotFound
	}

	next := clonePayment(cur)
	if err := fn(&next); err != nil {
		return clonePayment(cur), err
	}
	next.ID = id
	m.payments[id] = next
	return clonePayment(next), nil
}

func (m *Memory) ListByUser(_ context.Context, userID int64) ([]models.Payment, error) {
	m.mu.RLock()
	out := []models.Payment{}
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, clonePayment(p))
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func sortNewestFirst(ps []models.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}

// clonePayment detaches the time pointers so callers cannot mutate stored state.
func clonePayment(p models.Payment) models.Payment {
	if p.PaidAt != nil {
		t := *p.PaidAt
		p.PaidAt = &t
	}
	if p.RefundedAt != nil {
		t := *p.RefundedAt
		p.RefundedAt = &t
	}
	return p
}
