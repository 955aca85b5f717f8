package availability

import (
	"errors"
	"fmt"

	"ecostay/internal/domain/shared/daterange"
)

// Reason is the machine-readable cause of a rejected request.
type Reason string

const (
	ReasonPastDate     Reason = "past_date"
	ReasonBlocked      Reason = "blocked"
	ReasonOverlap      Reason = "overlap"
	ReasonInvalidRange Reason = "invalid_range"
)

var (
	ErrInvalidDateRange = errors.New("availability: check-out must be after check-in")
	ErrPastDate         = errors.New("availability: date is in the past")
	ErrDateBlocked      = errors.New("availability: date is blocked by the host")
	ErrDateRangeOverlap = errors.New("availability: dates are already booked")
)

// RejectionError carries the reason plus the first offending date or booking.
type RejectionError struct {
	Reason    Reason
	Date      daterange.Date
	BookingID string
}

func (e *RejectionError) Error() string {
	base := e.Unwrap().Error()
	if !e.Date.IsZero() {
		return fmt.Sprintf("%s (%s)", base, e.Date)
	}
	return base
}

func (e *RejectionError) Unwrap() error {
	switch e.Reason {
	case ReasonPastDate:
		return ErrPastDate
	case ReasonBlocked:
		return ErrDateBlocked
	case ReasonOverlap:
		return ErrDateRangeOverlap
	default:
		return ErrInvalidDateRange
	}
}

// Request is a candidate reservation. A zero CheckOut selects single-date mode.
// MinDate, when set, replaces today as the earliest allowed check-in.
type Request struct {
	CheckIn  daterange.Date
	CheckOut daterange.Date
	MinDate  daterange.Date
}

// SingleDate reports whether the request books one day (experiences, services).
func (r Request) SingleDate() bool {
	return r.CheckOut.IsZero()
}

// Normalized swaps check-in and check-out when supplied out of order. The
// resolver always evaluates the normalized request.
func (r Request) Normalized() Request {
	if !r.CheckOut.IsZero() && r.CheckIn.After(r.CheckOut) {
		r.CheckIn, r.CheckOut = r.CheckOut, r.CheckIn
	}
	return r
}

// Span is the half-open interval the request would occupy.
func (r Request) Span() daterange.DateRange {
	if r.SingleDate() {
		return daterange.Day(r.CheckIn)
	}
	return daterange.DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// Decision is the resolver verdict.
type Decision struct {
	OK        bool
	Reason    Reason
	Date      daterange.Date
	BookingID string
	Request   Request
}

// Err maps a rejection to a *RejectionError; nil when OK.
func (d Decision) Err() error {
	if d.OK {
		return nil
	}
	return &RejectionError{Reason: d.Reason, Date: d.Date, BookingID: d.BookingID}
}

// Resolve decides whether req can be booked given host-blocked dates and the
// existing reservations. Only pending, confirmed and active reservations hold
// dates; the checkout day of any reservation stays free.
func Resolve(blocked map[daterange.Date]struct{}, reservations []Reservation, req Request, today daterange.Date) Decision {
	req = req.Normalized()
	reject := func(reason Reason, d daterange.Date, bookingID string) Decision {
		return Decision{Reason: reason, Date: d, BookingID: bookingID, Request: req}
	}

	if req.CheckIn.IsZero() {
		return reject(ReasonInvalidRange, daterange.Date{}, "")
	}
	floor := today
	if !req.MinDate.IsZero() {
		floor = req.MinDate
	}
	if req.CheckIn.Before(floor) {
		return reject(ReasonPastDate, req.CheckIn, "")
	}
	if !req.SingleDate() && req.CheckIn.Equal(req.CheckOut) {
		return reject(ReasonInvalidRange, req.CheckIn, "")
	}

	span := req.Span()
	for _, d := range span.Days() {
		if _, ok := blocked[d]; ok {
			return reject(ReasonBlocked, d, "")
		}
	}
	for _, res := range reservations {
		if !res.Status.Holds() {
			continue
		}
		existing := res.Span()
		if req.SingleDate() {
			if existing.ContainsDate(req.CheckIn) {
				return reject(ReasonOverlap, req.CheckIn, res.BookingID)
			}
			continue
		}
		if span.CheckIn.Before(existing.CheckOut) && span.CheckOut.After(existing.CheckIn) {
			first := span.CheckIn
			if existing.CheckIn.After(first) {
				first = existing.CheckIn
			}
			return reject(ReasonOverlap, first, res.BookingID)
		}
	}
	return Decision{OK: true, Request: req}
}
