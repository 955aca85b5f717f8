package booking

import (
	"context"
	"time"

	"ecostay/internal/app/policies"
	"ecostay/internal/app/queries"
	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainlistings "ecostay/internal/domain/listings"
	domainpricing "ecostay/internal/domain/pricing"
	"ecostay/internal/domain/shared/daterange"
)

const quoteKey = "booking.quote"

type QuoteQuery struct {
	ListingID string `validate:"required"`
	CheckIn   daterange.Date
	CheckOut  daterange.Date
	MinDate   daterange.Date
	Guests    int    `validate:"gte=1"`
	PromoCode string `validate:"omitempty,max=64"`
}

func (q QuoteQuery) Key() string { return quoteKey }

// QuoteResult prices a request without taking payment. Available is false
// with a Reason when the dates would currently be rejected.
type QuoteResult struct {
	Quote     domainpricing.Quote `json:"quote"`
	Available bool                `json:"available"`
	Reason    string              `json:"reason,omitempty"`
}

type QuoteHandler struct {
	UoWFactory uow.UoWFactory
	Fees       policies.FeeSchedule
	Promos     policies.PromoResolver
	Location   *time.Location
	Clock      func() time.Time
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (QuoteResult, error) {
	now := time.Now()
	if h.Clock != nil {
		now = h.Clock()
	}
	today := daterange.Today(now, h.Location)
	req := domainavailability.Request{CheckIn: q.CheckIn, CheckOut: q.CheckOut, MinDate: q.MinDate}

	var listing *domainlistings.Listing
	var decision domainavailability.Decision
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		listing, err = unit.Listings().ByID(ctx, q.ListingID)
		if err != nil {
			return err
		}
		if err := checkListingFit(listing, q.CheckOut, q.Guests); err != nil {
			return err
		}
		doc, err := unit.Availability().Get(ctx, listing.ID, listing.HostID)
		if err != nil {
			return err
		}
		decision = doc.Check(req, today)
		return nil
	})
	if err != nil {
		return QuoteResult{}, err
	}

	priced := req.Normalized()
	if decision.OK {
		priced = decision.Request
	}
	quote, err := priceRequest(ctx, h.Fees, h.Promos, listing, priced, q.Guests, q.PromoCode)
	if err != nil {
		return QuoteResult{}, err
	}
	result := QuoteResult{Quote: quote, Available: decision.OK}
	if !decision.OK {
		result.Reason = string(decision.Reason)
	}
	return result, nil
}

var _ queries.Handler[QuoteQuery, QuoteResult] = (*QuoteHandler)(nil)
