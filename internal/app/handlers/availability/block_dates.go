package availability

import (
	"context"
	"errors"
	"time"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/dto"
	"ecostay/internal/app/outbox"
	"ecostay/internal/app/uow"
	domainbooking "ecostay/internal/domain/booking"
	"ecostay/internal/domain/shared/daterange"
)

const (
	blockDatesKey   = "availability.block"
	unblockDatesKey = "availability.unblock"
)

var ErrNoDates = errors.New("availability: at least one date required")

// BlockDatesCommand marks dates unavailable. Dates already reserved can still
// be blocked; the block only affects new requests.
type BlockDatesCommand struct {
	ListingID string `validate:"required"`
	HostID    string `validate:"required"`
	Dates     []daterange.Date
}

func (c BlockDatesCommand) Key() string     { return blockDatesKey }
func (c BlockDatesCommand) ActorID() string { return c.HostID }

type UnblockDatesCommand struct {
	ListingID string `validate:"required"`
	HostID    string `validate:"required"`
	Dates     []daterange.Date
}

func (c UnblockDatesCommand) Key() string     { return unblockDatesKey }
func (c UnblockDatesCommand) ActorID() string { return c.HostID }

// HostCalendarHandler edits the host-blocked set. It runs inside the unit the
// transaction middleware opened.
type HostCalendarHandler struct {
	Encoder outbox.EventEncoder
	Clock   func() time.Time
}

func (h *HostCalendarHandler) Block(ctx context.Context, cmd BlockDatesCommand) (dto.Calendar, error) {
	return h.edit(ctx, cmd.ListingID, cmd.HostID, cmd.Dates, true)
}

func (h *HostCalendarHandler) Unblock(ctx context.Context, cmd UnblockDatesCommand) (dto.Calendar, error) {
	return h.edit(ctx, cmd.ListingID, cmd.HostID, cmd.Dates, false)
}

func (h *HostCalendarHandler) edit(ctx context.Context, listingID, hostID string, dates []daterange.Date, block bool) (dto.Calendar, error) {
	if len(dates) == 0 {
		return dto.Calendar{}, ErrNoDates
	}
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return dto.Calendar{}, uow.ErrUnitOfWorkMissing
	}
	listing, err := unit.Listings().ByID(ctx, listingID)
	if err != nil {
		return dto.Calendar{}, err
	}
	if listing.HostID != hostID {
		return dto.Calendar{}, domainbooking.ErrForbidden
	}
	doc, err := unit.Availability().Get(ctx, listing.ID, listing.HostID)
	if err != nil {
		return dto.Calendar{}, err
	}
	now := time.Now().UTC()
	if h.Clock != nil {
		now = h.Clock().UTC()
	}
	var changed []daterange.Date
	if block {
		changed = doc.Block(dates, now)
	} else {
		changed = doc.Unblock(dates, now)
	}
	if len(changed) > 0 {
		if err := unit.Availability().Save(ctx, doc); err != nil {
			return dto.Calendar{}, err
		}
		if err := outbox.DrainInto(ctx, unit.Outbox(), h.Encoder, doc); err != nil {
			return dto.Calendar{}, err
		}
	}
	return dto.MapCalendar(doc), nil
}

var (
	_ commands.Handler[BlockDatesCommand, dto.Calendar]   = commands.HandlerFunc[BlockDatesCommand, dto.Calendar](nil)
	_ commands.Handler[UnblockDatesCommand, dto.Calendar] = commands.HandlerFunc[UnblockDatesCommand, dto.Calendar](nil)
)
