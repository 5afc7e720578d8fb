package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSeatWeight(t *testing.T) {
	t.Run("divides committee weight evenly", func(t *testing.T) {
		w := SeatWeight(decimal.NewNullDecimal(decimal.NewFromInt(10)), 4)
		assert.True(t, w.Valid)
		assert.True(t, w.Decimal.Equal(decimal.RequireFromString("2.5")))
	})

	t.Run("null committee weight yields null", func(t *testing.T) {
		w := SeatWeight(decimal.NullDecimal{}, 4)
		assert.False(t, w.Valid)
	})

	t.Run("non-positive seat count yields null", func(t *testing.T) {
		w := SeatWeight(decimal.NewNullDecimal(decimal.NewFromInt(10)), 0)
		assert.False(t, w.Valid)
	})
}
