package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"ecostay/internal/app/policies"
	domainlistings "ecostay/internal/domain/listings"
	domainpricing "ecostay/internal/domain/pricing"
)

// PromoEntry is a catalog row. ListingIDs empty means every listing.
type PromoEntry struct {
	Promo      domainpricing.Promo
	ListingIDs []string
	ExpiresAt  time.Time
}

// PromoCatalog resolves promo codes from a static table.
type PromoCatalog struct {
	mu    sync.RWMutex
	codes map[string]PromoEntry
	Now   func() time.Time
}

func NewPromoCatalog() *PromoCatalog {
	return &PromoCatalog{codes: make(map[string]PromoEntry)}
}

func (c *PromoCatalog) Put(entry PromoEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code := strings.ToUpper(strings.TrimSpace(entry.Promo.Code))
	entry.Promo.Code = code
	c.codes[code] = entry
}

func (c *PromoCatalog) Resolve(_ context.Context, code string, listing *domainlistings.Listing) (*domainpricing.Promo, error) {
	c.mu.RLock()
	entry, ok := c.codes[strings.ToUpper(strings.TrimSpace(code))]
	c.mu.RUnlock()
	if !ok {
		return nil, policies.ErrPromoNotFound
	}
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
		return nil, policies.ErrPromoNotFound
	}
	if len(entry.ListingIDs) > 0 && listing != nil {
		found := false
		for _, id := range entry.ListingIDs {
			if id == listing.ID {
				found = true
				break
			}
		}
		if !found {
			return nil, policies.ErrPromoNotFound
		}
	}
	promo := entry.Promo
	return &promo, nil
}

var _ policies.PromoResolver = (*PromoCatalog)(nil)
