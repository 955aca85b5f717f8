package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingapp "ecostay/internal/app/handlers/booking"
	domainbooking "ecostay/internal/domain/booking"
)

func TestConfirmIsHostOnly(t *testing.T) {
	e := newEnv(t)
	e.fund(t, "guest", 50000)
	res, err := e.book("guest", "2025-03-10", "2025-03-13")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: res.BookingID, ActorIDV: "guest"})
	require.ErrorIs(t, err, bookingapp.ErrHostOnly)

	b, err := e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", b.Status)

	_, err = e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)

	_, err = e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: "missing", ActorIDV: "host"})
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestCompleteCreditsHostOnce(t *testing.T) {
	e := newEnv(t)
	e.fund(t, "guest", 50000)
	res, err := e.book("guest", "2025-03-10", "2025-03-13")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.lifecycle.Complete(ctx, bookingapp.CompleteBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.ErrorIs(t, err, domainbooking.ErrInvalidState)

	_, err = e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		b, err := e.lifecycle.Complete(ctx, bookingapp.CompleteBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
		require.NoError(t, err)
		assert.Equal(t, "completed", b.Status)
	}
	// total minus the 10% service fee
	assert.EqualValues(t, 30000, e.balance(t, "host"))

	history, err := e.ledger.History(ctx, "host")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, bookingapp.HostCreditKey(res.BookingID), history[0].IdempotencyKey)
}

func TestActivateHoldsDatesUntilComplete(t *testing.T) {
	e := newEnv(t)
	e.fund(t, "guest", 50000)
	e.fund(t, "other", 50000)
	res, err := e.book("guest", "2025-03-10", "2025-03-13")
	require.NoError(t, err)
	ctx := context.Background()
	activate := bookingapp.ActivateBookingCommand{BookingID: res.BookingID, ActorIDV: "host"}

	_, err = e.lifecycle.Activate(ctx, activate)
	require.ErrorIs(t, err, domainbooking.ErrInvalidState, "pending stays cannot start")

	_, err = e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.NoError(t, err)
	_, err = e.lifecycle.Activate(ctx, bookingapp.ActivateBookingCommand{BookingID: res.BookingID, ActorIDV: "guest"})
	require.ErrorIs(t, err, bookingapp.ErrHostOnly)

	for i := 0; i < 2; i++ {
		b, err := e.lifecycle.Activate(ctx, activate)
		require.NoError(t, err)
		assert.Equal(t, "active", b.Status)
	}

	_, err = e.book("other", "2025-03-11", "2025-03-12")
	require.Error(t, err)
	assert.Equal(t, domainbooking.AttemptRejected, attemptState(t, err))

	_, err = e.lifecycle.Cancel(ctx, bookingapp.CancelBookingCommand{BookingID: res.BookingID, ActorIDV: "guest"})
	require.ErrorIs(t, err, domainbooking.ErrInvalidState)

	b, err := e.lifecycle.Complete(ctx, bookingapp.CompleteBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.NoError(t, err)
	assert.Equal(t, "completed", b.Status)
	assert.EqualValues(t, 30000, e.balance(t, "host"))
}

func TestCancelRefundsAndFreesDates(t *testing.T) {
	e := newEnv(t)
	e.fund(t, "guest", 50000)
	res, err := e.book("guest", "2025-03-10", "2025-03-13")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.lifecycle.Cancel(ctx, bookingapp.CancelBookingCommand{BookingID: res.BookingID, ActorIDV: "stranger"})
	require.ErrorIs(t, err, domainbooking.ErrForbidden)

	for i := 0; i < 2; i++ {
		b, err := e.lifecycle.Cancel(ctx, bookingapp.CancelBookingCommand{BookingID: res.BookingID, ActorIDV: "guest", Reason: "plans changed"})
		require.NoError(t, err)
		assert.Equal(t, "cancelled", b.Status)
	}
	assert.EqualValues(t, 50000, e.balance(t, "guest"))

	report, err := e.ledger.VerifyInvariant(ctx, "guest")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 3, report.Transactions)

	e.fund(t, "other", 50000)
	_, err = e.book("other", "2025-03-11", "2025-03-12")
	require.NoError(t, err)
}

func TestCompletedBookingCannotBeCancelled(t *testing.T) {
	e := newEnv(t)
	e.fund(t, "guest", 50000)
	res, err := e.book("guest", "2025-03-10", "2025-03-13")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.lifecycle.Confirm(ctx, bookingapp.ConfirmBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.NoError(t, err)
	_, err = e.lifecycle.Complete(ctx, bookingapp.CompleteBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	require.NoError(t, err)

	_, err = e.lifecycle.Cancel(ctx, bookingapp.CancelBookingCommand{BookingID: res.BookingID, ActorIDV: "host"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
	assert.EqualValues(t, 17000, e.balance(t, "guest"))
}

func TestQuoteReportsAvailability(t *testing.T) {
	e := newEnv(t)
	e.fund(t, "guest", 50000)
	_, err := e.book("guest", "2025-03-10", "2025-03-13")
	require.NoError(t, err)

	quotes := &bookingapp.QuoteHandler{UoWFactory: e.factory, Fees: e.requests.Fees, Location: e.requests.Location, Clock: clock}
	free, err := quotes.Handle(context.Background(), bookingapp.QuoteQuery{ListingID: "cabin", CheckIn: d("2025-03-20"), CheckOut: d("2025-03-22"), Guests: 1})
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.EqualValues(t, 22000, free.Quote.GrandTotal.Amount)

	taken, err := quotes.Handle(context.Background(), bookingapp.QuoteQuery{ListingID: "cabin", CheckIn: d("2025-03-12"), CheckOut: d("2025-03-14"), Guests: 1})
	require.NoError(t, err)
	assert.False(t, taken.Available)
	assert.Equal(t, "overlap", taken.Reason)
}
