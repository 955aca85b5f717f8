package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostay/internal/domain/shared/daterange"
)

var (
	d     = daterange.MustParse
	today = daterange.MustParse("2024-03-01")
)

func stay(in, out string) Request {
	return Request{CheckIn: d(in), CheckOut: d(out)}
}

func TestResolveRanges(t *testing.T) {
	existing := []Reservation{{BookingID: "b1", CheckIn: d("2024-03-10"), CheckOut: d("2024-03-12"), Status: StatusConfirmed}}

	cases := []struct {
		name   string
		req    Request
		ok     bool
		reason Reason
		date   daterange.Date
	}{
		{name: "overlapping tail", req: stay("2024-03-11", "2024-03-13"), reason: ReasonOverlap, date: d("2024-03-11")},
		{name: "touching checkout", req: stay("2024-03-12", "2024-03-14"), ok: true},
		{name: "touching checkin", req: stay("2024-03-08", "2024-03-10"), ok: true},
		{name: "enclosing", req: stay("2024-03-09", "2024-03-15"), reason: ReasonOverlap, date: d("2024-03-10")},
		{name: "past", req: stay("2024-02-28", "2024-03-02"), reason: ReasonPastDate, date: d("2024-02-28")},
		{name: "zero nights", req: stay("2024-03-20", "2024-03-20"), reason: ReasonInvalidRange},
		{name: "missing checkin", req: Request{}, reason: ReasonInvalidRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := Resolve(nil, existing, tc.req, today)
			assert.Equal(t, tc.ok, dec.OK)
			if !tc.ok {
				assert.Equal(t, tc.reason, dec.Reason)
				if !tc.date.IsZero() {
					assert.Equal(t, tc.date, dec.Date)
				}
			}
		})
	}
}

func TestResolveSwapsReversedRange(t *testing.T) {
	dec := Resolve(nil, nil, stay("2024-03-14", "2024-03-12"), today)
	require.True(t, dec.OK)
	assert.Equal(t, d("2024-03-12"), dec.Request.CheckIn)
	assert.Equal(t, d("2024-03-14"), dec.Request.CheckOut)
}

func TestResolveBlockedDates(t *testing.T) {
	blocked := map[daterange.Date]struct{}{d("2024-03-13"): {}}

	dec := Resolve(blocked, nil, stay("2024-03-12", "2024-03-15"), today)
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonBlocked, dec.Reason)
	assert.Equal(t, d("2024-03-13"), dec.Date)

	// the checkout morning is not a night of the stay
	dec = Resolve(blocked, nil, stay("2024-03-11", "2024-03-13"), today)
	assert.True(t, dec.OK)
}

func TestResolveIgnoresReleasedReservations(t *testing.T) {
	existing := []Reservation{
		{BookingID: "gone", CheckIn: d("2024-03-10"), CheckOut: d("2024-03-12"), Status: StatusCancelled},
		{BookingID: "done", CheckIn: d("2024-03-10"), CheckOut: d("2024-03-12"), Status: StatusCompleted},
	}
	assert.True(t, Resolve(nil, existing, stay("2024-03-10", "2024-03-12"), today).OK)
}

func TestResolveSingleDate(t *testing.T) {
	existing := []Reservation{
		{BookingID: "tour", CheckIn: d("2024-03-10"), Status: StatusPending},
		{BookingID: "stay", CheckIn: d("2024-03-15"), CheckOut: d("2024-03-17"), Status: StatusActive},
	}
	dec := Resolve(nil, existing, Request{CheckIn: d("2024-03-10")}, today)
	assert.Equal(t, ReasonOverlap, dec.Reason)
	assert.Equal(t, "tour", dec.BookingID)

	assert.True(t, Resolve(nil, existing, Request{CheckIn: d("2024-03-11")}, today).OK)
	assert.Equal(t, ReasonOverlap, Resolve(nil, existing, Request{CheckIn: d("2024-03-16")}, today).Reason)
	assert.True(t, Resolve(nil, existing, Request{CheckIn: d("2024-03-17")}, today).OK)
}

func TestResolveMinDateOverridesToday(t *testing.T) {
	req := stay("2024-03-05", "2024-03-07")
	req.MinDate = d("2024-03-06")
	assert.Equal(t, ReasonPastDate, Resolve(nil, nil, req, today).Reason)

	early := stay("2024-02-20", "2024-02-22")
	assert.Equal(t, ReasonPastDate, Resolve(nil, nil, early, today).Reason)
	early.MinDate = d("2024-02-01")
	assert.True(t, Resolve(nil, nil, early, today).OK)
}

func TestRejectionErrorUnwraps(t *testing.T) {
	err := Resolve(nil, []Reservation{{BookingID: "b1", CheckIn: d("2024-03-10"), CheckOut: d("2024-03-12"), Status: StatusPending}}, stay("2024-03-11", "2024-03-13"), today).Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDateRangeOverlap)
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "b1", rej.BookingID)
	assert.Contains(t, err.Error(), "2024-03-11")
}

func TestReserveSequence(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	doc := New("lst", "host")

	require.NoError(t, doc.Reserve("b1", stay("2024-03-10", "2024-03-12"), today, now))
	err := doc.Reserve("b2", stay("2024-03-11", "2024-03-13"), today, now)
	assert.ErrorIs(t, err, ErrDateRangeOverlap)
	require.NoError(t, doc.Reserve("b3", stay("2024-03-12", "2024-03-14"), today, now))
	assert.ErrorIs(t, doc.Reserve("b1", stay("2024-04-01", "2024-04-02"), today, now), ErrDuplicateReservation)

	names := make([]string, 0)
	for _, ev := range doc.Drain() {
		names = append(names, ev.EventName())
	}
	assert.Equal(t, []string{"calendar.reserved", "calendar.overbooking_prevented", "calendar.reserved"}, names)
	assert.Len(t, doc.BookedRanges(), 2)
}

func TestReleaseFreesDates(t *testing.T) {
	now := time.Now()
	doc := New("lst", "host")
	require.NoError(t, doc.Reserve("b1", stay("2024-03-10", "2024-03-12"), today, now))
	require.NoError(t, doc.Release("b1", now))
	assert.Empty(t, doc.BookedRanges())
	require.NoError(t, doc.Reserve("b2", stay("2024-03-10", "2024-03-12"), today, now))
	assert.ErrorIs(t, doc.SetStatus("missing", StatusConfirmed, now), ErrReservationNotFound)
}

func TestBlockAndUnblock(t *testing.T) {
	now := time.Now()
	doc := New("lst", "host")
	added := doc.Block([]daterange.Date{d("2024-03-12"), d("2024-03-10"), d("2024-03-12"), {}}, now)
	assert.Len(t, added, 2)
	assert.Equal(t, []daterange.Date{d("2024-03-10"), d("2024-03-12")}, doc.SortedBlockedDates())
	assert.Empty(t, doc.Block([]daterange.Date{d("2024-03-10")}, now))

	removed := doc.Unblock([]daterange.Date{d("2024-03-10"), d("2024-03-20")}, now)
	assert.Equal(t, []daterange.Date{d("2024-03-10")}, removed)
	assert.Len(t, doc.Drain(), 2)
}

func TestCloneIsIndependent(t *testing.T) {
	doc := New("lst", "host")
	doc.Block([]daterange.Date{d("2024-03-10")}, time.Now())
	cp := doc.Clone()
	cp.Block([]daterange.Date{d("2024-03-11")}, time.Now())
	assert.Len(t, doc.BlockedDates, 1)
	assert.Len(t, doc.PendingEvents(), 1)
	assert.Len(t, cp.PendingEvents(), 1)
	assert.Equal(t, "lst_host", DocumentID("lst", "host"))
}
