package policies

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	domainlistings "ecostay/internal/domain/listings"
	domainpricing "ecostay/internal/domain/pricing"
)

var ErrPromoNotFound = errors.New("promo: code not found or expired")

// FeeSchedule supplies the platform service fee in percentage points.
type FeeSchedule interface {
	ServiceFeePercent(ctx context.Context, listing *domainlistings.Listing) (decimal.Decimal, error)
}

type PromoResolver interface {
	Resolve(ctx context.Context, code string, listing *domainlistings.Listing) (*domainpricing.Promo, error)
}

// FlatFee charges the same percent on every listing.
type FlatFee decimal.Decimal

func (f FlatFee) ServiceFeePercent(context.Context, *domainlistings.Listing) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}
