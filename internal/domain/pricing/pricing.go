package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"ecostay/internal/domain/listings"
	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset    = errors.New("pricing: currency must be defined")
	ErrNegativeBase     = errors.New("pricing: base price cannot be negative")
	ErrNegativeFeeRate  = errors.New("pricing: service fee percent cannot be negative")
	ErrInvalidGuests    = errors.New("pricing: guests count must be positive")
	ErrInvalidPromo     = errors.New("pricing: promo must carry a fraction in [0,1] or a fixed amount")
	ErrUnknownMode      = errors.New("pricing: unknown pricing mode")
	ErrPromoCurrency    = errors.New("pricing: promo currency does not match listing currency")
	percentDenominator  = decimal.NewFromInt(100)
	maxDiscountFraction = decimal.NewFromInt(1)
)

// Promo is a resolved promo code: either a fraction of the subtotal or a fixed amount.
type Promo struct {
	Code     string
	Fraction decimal.Decimal
	Fixed    money.Money
}

// Input carries everything the engine needs. ServiceFeePercent is in
// percentage points (12.5 means 12.5%).
type Input struct {
	Mode              listings.PricingMode
	BasePrice         money.Money
	CheckIn           daterange.Date
	CheckOut          daterange.Date
	Guests            int
	ServiceFeePercent decimal.Decimal
	Promo             *Promo
}

// Quote is the priced request, all amounts in minor units.
type Quote struct {
	Units      int         `json:"units"`
	BasePrice  money.Money `json:"base_price"`
	Subtotal   money.Money `json:"subtotal"`
	ServiceFee money.Money `json:"service_fee"`
	Discount   money.Money `json:"discount"`
	GrandTotal money.Money `json:"grand_total"`
	PromoCode  string      `json:"promo_code,omitempty"`
}

// Compute prices a booking request. It has no side effects.
func Compute(in Input) (Quote, error) {
	if in.BasePrice.Currency == "" {
		return Quote{}, ErrCurrencyUnset
	}
	if in.BasePrice.Amount < 0 {
		return Quote{}, ErrNegativeBase
	}
	if in.ServiceFeePercent.IsNegative() {
		return Quote{}, ErrNegativeFeeRate
	}

	units, err := units(in)
	if err != nil {
		return Quote{}, err
	}
	currency := in.BasePrice.Currency
	subtotal := in.BasePrice.Multiply(int64(units))
	fee := money.Money{Amount: percentOf(subtotal.Amount, in.ServiceFeePercent), Currency: currency}

	discount := money.Zero(currency)
	if in.Promo != nil {
		discount, err = applyPromo(*in.Promo, subtotal)
		if err != nil {
			return Quote{}, err
		}
	}

	gross := subtotal.Amount + fee.Amount
	if discount.Amount > gross {
		discount.Amount = gross
	}
	total := money.Money{Amount: gross - discount.Amount, Currency: currency}.FloorZero()

	q := Quote{
		Units:      units,
		BasePrice:  in.BasePrice,
		Subtotal:   subtotal,
		ServiceFee: fee,
		Discount:   discount,
		GrandTotal: total,
	}
	if in.Promo != nil {
		q.PromoCode = in.Promo.Code
	}
	return q, nil
}

func units(in Input) (int, error) {
	switch in.Mode {
	case listings.PricePerNight, "":
		if in.CheckOut.IsZero() {
			return 1, nil
		}
		nights := daterange.DateRange{CheckIn: in.CheckIn, CheckOut: in.CheckOut}.Normalized().Nights()
		if nights < 1 {
			nights = 1
		}
		return nights, nil
	case listings.PricePerGuest:
		if in.Guests < 1 {
			return 0, ErrInvalidGuests
		}
		return in.Guests, nil
	default:
		return 0, ErrUnknownMode
	}
}

func applyPromo(p Promo, subtotal money.Money) (money.Money, error) {
	if p.Fixed.Amount > 0 {
		if p.Fixed.Currency != "" && p.Fixed.Currency != subtotal.Currency {
			return money.Money{}, ErrPromoCurrency
		}
		return money.Money{Amount: p.Fixed.Amount, Currency: subtotal.Currency}, nil
	}
	if p.Fraction.IsNegative() || p.Fraction.GreaterThan(maxDiscountFraction) {
		return money.Money{}, ErrInvalidPromo
	}
	if p.Fraction.IsZero() {
		return money.Money{}, ErrInvalidPromo
	}
	amount := decimal.NewFromInt(subtotal.Amount).Mul(p.Fraction).Round(0).IntPart()
	return money.Money{Amount: amount, Currency: subtotal.Currency}, nil
}

// percentOf rounds half away from zero to whole minor units.
func percentOf(amount int64, percent decimal.Decimal) int64 {
	if percent.IsZero() || amount == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(percent).Div(percentDenominator).Round(0).IntPart()
}
