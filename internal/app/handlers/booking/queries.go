package booking

import (
	"context"

	"ecostay/internal/app/dto"
	"ecostay/internal/app/queries"
	"ecostay/internal/app/uow"
	domainbooking "ecostay/internal/domain/booking"
)

const (
	getBookingKey        = "booking.get"
	listGuestBookingsKey = "booking.list_guest"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (q GetBookingQuery) Key() string     { return getBookingKey }
func (q GetBookingQuery) ActorID() string { return q.ActorIDV }

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string     { return listGuestBookingsKey }
func (q ListGuestBookingsQuery) ActorID() string { return q.GuestID }

type QueryHandler struct {
	UoWFactory uow.UoWFactory
}

// Get returns the booking to its guest or host only.
func (h *QueryHandler) Get(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	var result dto.Booking
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, q.BookingID)
		if err != nil {
			return err
		}
		if !b.IsParty(q.ActorIDV) {
			return domainbooking.ErrForbidden
		}
		result = dto.MapBooking(b)
		return nil
	})
	return result, err
}

func (h *QueryHandler) ListGuest(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	var result dto.BookingCollection
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		items, err := unit.Bookings().ListByGuest(ctx, q.GuestID)
		if err != nil {
			return err
		}
		result.Items = make([]dto.Booking, 0, len(items))
		for _, b := range items {
			result.Items = append(result.Items, dto.MapBooking(b))
		}
		return nil
	})
	return result, err
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]                  = queries.HandlerFunc[GetBookingQuery, dto.Booking](nil)
	_ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = queries.HandlerFunc[ListGuestBookingsQuery, dto.BookingCollection](nil)
)
