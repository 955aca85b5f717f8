package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"ecostay/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: not found")
	ErrGuestsLimit     = errors.New("listings: guests limit must be at least 1")
	ErrHostRequired    = errors.New("listings: host is required")
	ErrBasePrice       = errors.New("listings: base price must be positive")
	ErrUnknownKind     = errors.New("listings: unknown listing kind")
)

// Kind decides whether a listing is booked by date range or by single date.
type Kind string

const (
	KindStay       Kind = "stay"
	KindExperience Kind = "experience"
	KindService    Kind = "service"
)

// PricingMode selects how the base price scales.
type PricingMode string

const (
	PricePerNight PricingMode = "per_night"
	PricePerGuest PricingMode = "per_guest"
)

type Listing struct {
	ID          string
	HostID      string
	Title       string
	Kind        Kind
	PricingMode PricingMode
	BasePrice   money.Money
	GuestsLimit int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}

// RangeBooked reports whether bookings on this listing carry a checkout date.
func (l *Listing) RangeBooked() bool {
	return l.Kind == KindStay
}

// Validate normalizes defaults and checks listing invariants.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.HostID) == "" {
		return ErrHostRequired
	}
	switch l.Kind {
	case KindStay, KindExperience, KindService:
	case "":
		l.Kind = KindStay
	default:
		return ErrUnknownKind
	}
	if l.PricingMode == "" {
		if l.Kind == KindStay {
			l.PricingMode = PricePerNight
		} else {
			l.PricingMode = PricePerGuest
		}
	}
	if l.GuestsLimit < 1 {
		return ErrGuestsLimit
	}
	if !l.BasePrice.Positive() {
		return ErrBasePrice
	}
	return nil
}
