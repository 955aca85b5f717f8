package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostay/internal/domain/listings"
	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/money"
)

func nightly(amount int64) Input {
	return Input{
		Mode:              listings.PricePerNight,
		BasePrice:         money.Must(amount, "USD"),
		CheckIn:           daterange.MustParse("2024-03-10"),
		CheckOut:          daterange.MustParse("2024-03-13"),
		ServiceFeePercent: decimal.NewFromInt(10),
	}
}

func TestComputePerNight(t *testing.T) {
	q, err := Compute(nightly(10000))
	require.NoError(t, err)
	assert.Equal(t, 3, q.Units)
	assert.Equal(t, int64(30000), q.Subtotal.Amount)
	assert.Equal(t, int64(3000), q.ServiceFee.Amount)
	assert.Equal(t, int64(33000), q.GrandTotal.Amount)
	assert.Equal(t, "USD", q.GrandTotal.Currency)
}

func TestComputeSingleDateIsOneUnit(t *testing.T) {
	in := nightly(5000)
	in.CheckOut = daterange.Date{}
	q, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Units)
	assert.Equal(t, int64(5500), q.GrandTotal.Amount)
}

func TestComputePerGuest(t *testing.T) {
	in := nightly(4500)
	in.Mode = listings.PricePerGuest
	in.Guests = 3
	q, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Units)
	assert.Equal(t, int64(13500), q.Subtotal.Amount)

	in.Guests = 0
	_, err = Compute(in)
	assert.ErrorIs(t, err, ErrInvalidGuests)
}

func TestFeeRoundsHalfAwayFromZero(t *testing.T) {
	in := nightly(1005)
	in.CheckOut = daterange.Date{}
	in.ServiceFeePercent = decimal.RequireFromString("12.5")
	q, err := Compute(in)
	require.NoError(t, err)
	// 1005 * 12.5% = 125.625
	assert.Equal(t, int64(126), q.ServiceFee.Amount)
	assert.Equal(t, int64(1131), q.GrandTotal.Amount)
}

func TestPromos(t *testing.T) {
	in := nightly(10000)
	in.Promo = &Promo{Code: "GREEN10", Fraction: decimal.RequireFromString("0.1")}
	q, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), q.Discount.Amount)
	assert.Equal(t, int64(30000), q.GrandTotal.Amount)
	assert.Equal(t, "GREEN10", q.PromoCode)

	in.Promo = &Promo{Code: "BIG", Fixed: money.Must(1_000_000, "USD")}
	q, err = Compute(in)
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.GrandTotal.Amount)
	assert.Equal(t, int64(33000), q.Discount.Amount)

	in.Promo = &Promo{Code: "EUR", Fixed: money.Must(100, "EUR")}
	_, err = Compute(in)
	assert.ErrorIs(t, err, ErrPromoCurrency)

	in.Promo = &Promo{Code: "BAD", Fraction: decimal.RequireFromString("1.5")}
	_, err = Compute(in)
	assert.ErrorIs(t, err, ErrInvalidPromo)
}

func TestComputeRejectsBadInput(t *testing.T) {
	in := nightly(100)
	in.BasePrice.Currency = ""
	_, err := Compute(in)
	assert.ErrorIs(t, err, ErrCurrencyUnset)

	in = nightly(100)
	in.ServiceFeePercent = decimal.NewFromInt(-1)
	_, err = Compute(in)
	assert.ErrorIs(t, err, ErrNegativeFeeRate)

	in = nightly(100)
	in.Mode = "per_hour"
	_, err = Compute(in)
	assert.ErrorIs(t, err, ErrUnknownMode)
}
