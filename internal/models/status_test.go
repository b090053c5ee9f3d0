package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusFailed, true},
		{StatusPaid, StatusRefunded, true},
		{StatusPending, StatusRefunded, false},
		{StatusPending, StatusPending, false},
		{StatusPaid, StatusPaid, false},
		{StatusPaid, StatusFailed, false},
		{StatusPaid, StatusPending, false},
		{StatusFailed, StatusPaid, false},
		{StatusRefunded, StatusPaid, false},
		{StatusRefunded, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPayment_MarkPaid(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pending becomes paid", func(t *testing.T) {
		p := Payment{ID: "pay_1", Status: StatusPending}
		require.NoError(t, p.MarkPaid("charge-1", 3, at))

		assert.Equal(t, StatusPaid, p.Status)
		require.NotNil(t, p.PaidAt)
		assert.Equal(t, at, *p.PaidAt)
		assert.Equal(t, "charge-1", p.ExternalChargeID)
		assert.Equal(t, int64(3), p.TotalAmount)
	})

	t.Run("second completion is rejected and changes nothing", func(t *testing.T) {
		first := at.Add(-time.Hour)
		p := Payment{ID: "pay_1", Status: StatusPaid, PaidAt: &first, ExternalChargeID: "charge-1"}

		err := p.MarkPaid("charge-2", 3, at)
		require.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, "charge-1", p.ExternalChargeID)
		assert.Equal(t, first, *p.PaidAt)
	})
}

func TestPayment_MarkRefunded(t *testing.T) {
	at := time.Now()

	p := Payment{Status: StatusPending}
	require.ErrorIs(t, p.MarkRefunded(at), ErrInvalidTransition)
	assert.Nil(t, p.RefundedAt)

	p.Status = StatusPaid
	require.NoError(t, p.MarkRefunded(at))
	assert.Equal(t, StatusRefunded, p.Status)
	require.NotNil(t, p.RefundedAt)
}

func TestPayment_MarkFailed(t *testing.T) {
	p := Payment{Status: StatusPending}
	require.NoError(t, p.MarkFailed())
	assert.Equal(t, StatusFailed, p.Status)

	require.ErrorIs(t, p.MarkFailed(), ErrInvalidTransition)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("refunded")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, st)

	_, err = ParseStatus("completed")
	assert.Error(t, err)
}
