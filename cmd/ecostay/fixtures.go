package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ecostay/internal/app/uow"
	domainlistings "ecostay/internal/domain/listings"
	domainpricing "ecostay/internal/domain/pricing"
	"ecostay/internal/domain/shared/money"
	"ecostay/internal/infra/storage/memory"
)

const defaultFixturesPath = "data/fixtures.json"

type fixtures struct {
	Listings []listingFixture `json:"listings"`
	Promos   []promoFixture   `json:"promos"`
}

type listingFixture struct {
	ID          string `json:"id"`
	HostID      string `json:"host_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	PricingMode string `json:"pricing_mode"`
	BasePrice   int64  `json:"base_price"`
	Currency    string `json:"currency"`
	GuestsLimit int    `json:"guests_limit"`
}

type promoFixture struct {
	Code       string   `json:"code"`
	Percent    string   `json:"percent,omitempty"`
	Fixed      int64    `json:"fixed,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	ListingIDs []string `json:"listing_ids,omitempty"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
}

// loadFixtures seeds listings and promo codes. Existing listings are left
// alone so restarts against mongo keep their versions.
func (a *application) loadFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fx fixtures
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	for _, lf := range fx.Listings {
		listing, err := lf.toListing(now)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", lf.ID, "error", err)
			continue
		}
		err = uow.Run(ctx, a.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			if _, err := unit.Listings().ByID(ctx, listing.ID); err == nil {
				return nil
			} else if !errors.Is(err, domainlistings.ErrListingNotFound) {
				return err
			}
			return unit.Listings().Save(ctx, listing)
		})
		if err != nil {
			logger.Error("cannot store fixture listing", "listing_id", lf.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", listing.ID)
	}

	for _, pf := range fx.Promos {
		entry, err := pf.toEntry()
		if err != nil {
			logger.Error("promo fixture invalid", "code", pf.Code, "error", err)
			continue
		}
		a.promos.Put(entry)
	}
	return nil
}

func (f listingFixture) toListing(now time.Time) (*domainlistings.Listing, error) {
	price, err := money.New(f.BasePrice, f.Currency)
	if err != nil {
		return nil, err
	}
	l := &domainlistings.Listing{
		ID:          f.ID,
		HostID:      f.HostID,
		Title:       f.Title,
		Kind:        domainlistings.Kind(strings.ToLower(f.Kind)),
		PricingMode: domainlistings.PricingMode(strings.ToLower(f.PricingMode)),
		BasePrice:   price,
		GuestsLimit: f.GuestsLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if strings.TrimSpace(l.ID) == "" {
		return nil, errors.New("listing id required")
	}
	return l, l.Validate()
}

func (f promoFixture) toEntry() (memory.PromoEntry, error) {
	entry := memory.PromoEntry{Promo: domainpricing.Promo{Code: f.Code}, ListingIDs: f.ListingIDs}
	switch {
	case f.Percent != "":
		pct, err := decimal.NewFromString(f.Percent)
		if err != nil {
			return entry, err
		}
		entry.Promo.Fraction = pct.Div(decimal.NewFromInt(100))
	case f.Fixed > 0:
		fixed, err := money.New(f.Fixed, f.Currency)
		if err != nil {
			return entry, err
		}
		entry.Promo.Fixed = fixed
	default:
		return entry, domainpricing.ErrInvalidPromo
	}
	if f.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, f.ExpiresAt)
		if err != nil {
			return entry, err
		}
		entry.ExpiresAt = t
	}
	return entry, nil
}
