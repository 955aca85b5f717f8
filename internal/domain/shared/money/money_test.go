package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizesCurrency(t *testing.T) {
	m, err := New(150, "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", m.Currency)

	_, err = New(1, "EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	assert.Panics(t, func() { Must(1, "") })
}

func TestArithmetic(t *testing.T) {
	a := Must(1000, "USD")
	b := Must(250, "usd")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.EqualValues(t, 1250, sum.Amount)

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.EqualValues(t, -750, diff.Amount)
	assert.True(t, diff.FloorZero().IsZero())

	assert.EqualValues(t, 3000, a.Multiply(3).Amount)
	assert.True(t, a.Positive())

	_, err = a.Add(Must(1, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = a.Sub(Money{Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestSameAs(t *testing.T) {
	assert.True(t, Must(5, "USD").SameAs(Money{Amount: 5, Currency: "usd"}))
	assert.False(t, Must(5, "USD").SameAs(Must(6, "USD")))
	assert.True(t, Zero("usd").IsZero())
	assert.Equal(t, "USD", Zero("usd").Currency)
}
