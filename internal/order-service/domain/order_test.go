package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		plan   string
		amount int64
		known  bool
	}{
		{plan: "student", amount: 39900, known: true},
		{plan: "individual", amount: 69900, known: true},
		{plan: "family", amount: 99900, known: true},
		{plan: "unknown_plan", amount: 39900, known: false},
		{plan: "", amount: 39900, known: false},
		{plan: "Family", amount: 39900, known: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.plan, func(t *testing.T) {
			t.Parallel()
			amount, known := Price(tt.plan)
			assert.Equal(t, tt.amount, amount)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestOrder_MarkPaid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("created order becomes paid", func(t *testing.T) {
		o := Order{ID: "order-1", Status: StatusCreated}
		require.NoError(t, o.MarkPaid("pay-1", now))
		assert.True(t, o.IsPaid())
		assert.Equal(t, "pay-1", o.PaymentID)
		assert.Equal(t, now, o.VerifiedAt)
	})

	t.Run("paid order is left untouched", func(t *testing.T) {
		o := Order{ID: "order-2", Status: StatusPaid, PaymentID: "pay-1", VerifiedAt: now}
		err := o.MarkPaid("pay-2", now.Add(time.Hour))
		assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
		assert.Equal(t, "pay-1", o.PaymentID)
		assert.Equal(t, now, o.VerifiedAt)
	})

	t.Run("zero status is rejected", func(t *testing.T) {
		o := Order{ID: "order-3"}
		assert.ErrorIs(t, o.MarkPaid("pay-1", now), ErrInvalidTransition)
		assert.Empty(t, o.PaymentID)
	})
}
