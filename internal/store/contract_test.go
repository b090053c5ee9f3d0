package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stars-shop/internal/models"
)

func newPending(id string, userID int64, createdAt time.Time) models.Payment {
	return models.Payment{
		ID:        id,
		UserID:    userID,
		ProductID: "digital-course-js",
		Quantity:  1,
		Amount:    1,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		p := newPending("pay_1", 42, base)
		require.NoError(t, s.Create(ctx, p))

		got, err := s.Get(ctx, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("DuplicateCreate", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newPending("pay_dup", 1, base)))
		assert.ErrorIs(t, s.Create(ctx, newPending("pay_dup", 1, base)), ErrAlreadyExists)

		// the rejected create leaves no trace in another user's history
		assert.ErrorIs(t, s.Create(ctx, newPending("pay_dup", 2, base)), ErrAlreadyExists)
		other, err := s.ListByUser(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("ConcurrentCreateStoresOnce", func(t *testing.T) {
		s := newStore(t)

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Create(ctx, newPending("pay_once", 3, base)); err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		list, err := s.ListByUser(ctx, 3)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "pay_once", list[0].ID)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateAppliesTransition", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newPending("pay_u", 7, base)))

		paidAt := base.Add(time.Minute)
		got, err := s.Update(ctx, "pay_u", func(p *models.Payment) error {
			return p.MarkPaid("charge-9", 1, paidAt)
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, got.Status)

		stored, err := s.Get(ctx, "pay_u")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, stored.Status)
		assert.Equal(t, "charge-9", stored.ExternalChargeID)
		require.NotNil(t, stored.PaidAt)
		assert.True(t, paidAt.Equal(*stored.PaidAt))
	})

	t.Run("UpdateErrorLeavesRecordUntouched", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newPending("pay_e", 7, base)))

		boom := errors.New("boom")
		got, err := s.Update(ctx, "pay_e", func(p *models.Payment) error {
			p.Status = models.StatusRefunded
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, models.StatusPending, got.Status)

		stored, err := s.Get(ctx, "pay_e")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, stored.Status)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(ctx, "ghost", func(p *models.Payment) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListByUserNewestFirst", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newPending("pay_old", 5, base)))
		require.NoError(t, s.Create(ctx, newPending("pay_new", 5, base.Add(2*time.Minute))))
		require.NoError(t, s.Create(ctx, newPending("pay_mid", 5, base.Add(time.Minute))))
		require.NoError(t, s.Create(ctx, newPending("pay_other", 6, base)))

		list, err := s.ListByUser(ctx, 5)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "pay_new", list[0].ID)
		assert.Equal(t, "pay_mid", list[1].ID)
		assert.Equal(t, "pay_old", list[2].ID)

		empty, err := s.ListByUser(ctx, 999)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("ConcurrentCompletionPaysOnce", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newPending("pay_race", 9, base)))

		const workers = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, "pay_race", func(p *models.Payment) error {
					return p.MarkPaid("charge", 1, base)
				})
				if err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, accepted)
	})
}
