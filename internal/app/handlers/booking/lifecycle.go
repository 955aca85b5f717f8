package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/dto"
	"ecostay/internal/app/middleware"
	"ecostay/internal/app/outbox"
	"ecostay/internal/app/uow"
	domainbooking "ecostay/internal/domain/booking"
	domainwallet "ecostay/internal/domain/wallet"
)

const (
	confirmBookingKey  = "booking.confirm"
	activateBookingKey = "booking.activate"
	completeBookingKey = "booking.complete"
	cancelBookingKey   = "booking.cancel"
)

var ErrHostOnly = errors.New("booking: only the host may do this")

type ConfirmBookingCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (c ConfirmBookingCommand) Key() string     { return confirmBookingKey }
func (c ConfirmBookingCommand) ActorID() string { return c.ActorIDV }
func (c ConfirmBookingCommand) ManagesUnits()   {}

type ActivateBookingCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (c ActivateBookingCommand) Key() string     { return activateBookingKey }
func (c ActivateBookingCommand) ActorID() string { return c.ActorIDV }
func (c ActivateBookingCommand) ManagesUnits()   {}

type CompleteBookingCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (c CompleteBookingCommand) Key() string     { return completeBookingKey }
func (c CompleteBookingCommand) ActorID() string { return c.ActorIDV }
func (c CompleteBookingCommand) ManagesUnits()   {}

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string     { return cancelBookingKey }
func (c CancelBookingCommand) ActorID() string { return c.ActorIDV }
func (c CancelBookingCommand) ManagesUnits()   {}

// LifecycleHandler moves bookings after creation. Status changes commit
// first; the money movement they imply follows with a stable idempotency key,
// so re-sending a command after a ledger failure finishes the job.
type LifecycleHandler struct {
	UoWFactory uow.UoWFactory
	Ledger     Ledger
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (h *LifecycleHandler) Confirm(ctx context.Context, cmd ConfirmBookingCommand) (dto.Booking, error) {
	b, err := h.transition(ctx, cmd.BookingID, func(b *domainbooking.Booking) (bool, error) {
		if b.HostID != cmd.ActorIDV {
			return false, ErrHostOnly
		}
		return true, b.Confirm(h.now())
	})
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

// Activate checks the guest in. The reservation keeps holding the dates.
func (h *LifecycleHandler) Activate(ctx context.Context, cmd ActivateBookingCommand) (dto.Booking, error) {
	b, err := h.transition(ctx, cmd.BookingID, func(b *domainbooking.Booking) (bool, error) {
		if b.HostID != cmd.ActorIDV {
			return false, ErrHostOnly
		}
		if b.Status == domainbooking.StatusActive {
			return false, nil
		}
		return true, b.Activate(h.now())
	})
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

// Complete closes the stay and credits the host with total minus service fee.
func (h *LifecycleHandler) Complete(ctx context.Context, cmd CompleteBookingCommand) (dto.Booking, error) {
	b, err := h.transition(ctx, cmd.BookingID, func(b *domainbooking.Booking) (bool, error) {
		if b.HostID != cmd.ActorIDV {
			return false, ErrHostOnly
		}
		if b.Status == domainbooking.StatusCompleted {
			return false, nil
		}
		return true, b.Complete(h.now())
	})
	if err != nil {
		return dto.Booking{}, err
	}
	if payout := b.HostPayout(); payout.Amount > 0 {
		_, err := h.Ledger.Credit(ctx, b.HostID, payout.Amount, domainwallet.TypePaymentReceived, domainwallet.Metadata{
			RelatedBookingID: b.ID,
			IdempotencyKey:   HostCreditKey(b.ID),
			Description:      "booking completed",
		})
		if err != nil {
			h.logger().Error("host credit failed", "booking_id", b.ID, "host_id", b.HostID, "error", err)
			return dto.Booking{}, err
		}
	}
	return dto.MapBooking(b), nil
}

// Cancel releases the dates and refunds the guest in full.
func (h *LifecycleHandler) Cancel(ctx context.Context, cmd CancelBookingCommand) (dto.Booking, error) {
	b, err := h.transition(ctx, cmd.BookingID, func(b *domainbooking.Booking) (bool, error) {
		if !b.IsParty(cmd.ActorIDV) {
			return false, domainbooking.ErrForbidden
		}
		if b.Status == domainbooking.StatusCancelled {
			return false, nil
		}
		_, err := b.Cancel(cmd.Reason, h.now())
		return true, err
	})
	if err != nil {
		return dto.Booking{}, err
	}
	if b.Total.Amount > 0 {
		_, err := h.Ledger.Credit(ctx, b.GuestID, b.Total.Amount, domainwallet.TypeRefund, domainwallet.Metadata{
			RelatedBookingID: b.ID,
			IdempotencyKey:   RefundKey(b.ID),
			Description:      "booking cancelled",
		})
		if err != nil {
			h.logger().Error("cancellation refund failed", "booking_id", b.ID, "guest_id", b.GuestID, "error", err)
			return dto.Booking{}, err
		}
	}
	return dto.MapBooking(b), nil
}

// transition loads the booking, applies change and mirrors the new status on
// the availability document in one unit. change reports false when the
// booking is already in the target state.
func (h *LifecycleHandler) transition(ctx context.Context, bookingID string, change func(b *domainbooking.Booking) (bool, error)) (*domainbooking.Booking, error) {
	var result *domainbooking.Booking
	err := uow.Retry(ctx, h.UoWFactory, uow.RetryPolicy{Attempts: 3}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, bookingID)
		if err != nil {
			return err
		}
		changed, err := change(b)
		if err != nil {
			return err
		}
		result = b
		if !changed {
			return nil
		}
		doc, err := unit.Availability().Get(ctx, b.ListingID, b.HostID)
		if err != nil {
			return err
		}
		if err := doc.SetStatus(b.ID, b.Status.Reservation(), h.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := unit.Availability().Save(ctx, doc); err != nil {
			return err
		}
		return outbox.DrainInto(ctx, unit.Outbox(), h.Encoder, b, doc)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *LifecycleHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

func (h *LifecycleHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ commands.Handler[ConfirmBookingCommand, dto.Booking] = commands.HandlerFunc[ConfirmBookingCommand, dto.Booking](nil)
var _ middleware.UnitManager = CancelBookingCommand{}
