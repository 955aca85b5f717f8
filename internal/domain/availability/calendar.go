package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/events"
)

var (
	ErrReservationNotFound  = errors.New("availability: reservation not found")
	ErrDuplicateReservation = errors.New("availability: booking already holds a reservation")
)

// ReservationStatus mirrors the booking status on the materialized range.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusActive    ReservationStatus = "active"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Holds reports whether the status keeps the dates unavailable.
func (s ReservationStatus) Holds() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusActive:
		return true
	default:
		return false
	}
}

// Reservation is the booked range materialized on the listing document.
// A zero CheckOut marks a single-date reservation.
type Reservation struct {
	BookingID string
	CheckIn   daterange.Date
	CheckOut  daterange.Date
	Status    ReservationStatus
}

func (r Reservation) Span() daterange.DateRange {
	if r.CheckOut.IsZero() {
		return daterange.Day(r.CheckIn)
	}
	return daterange.DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// ListingAvailability is the per-listing document guarding against double
// booking. It is only mutated through the Availability Store path.
type ListingAvailability struct {
	ListingID    string
	HostID       string
	BlockedDates map[daterange.Date]struct{}
	Reservations []Reservation
	Version      int64
	UpdatedAt    time.Time
	events.EventRecorder
}

type Repository interface {
	// Get returns the listing document, or a fresh one at version 0.
	Get(ctx context.Context, listingID, hostID string) (*ListingAvailability, error)
	Save(ctx context.Context, availability *ListingAvailability) error
}

func New(listingID, hostID string) *ListingAvailability {
	return &ListingAvailability{
		ListingID:    listingID,
		HostID:       hostID,
		BlockedDates: make(map[daterange.Date]struct{}),
	}
}

// DocumentID is the storage key: listingId_hostId.
func DocumentID(listingID, hostID string) string {
	return listingID + "_" + hostID
}

// Check runs the resolver against the current document.
func (a *ListingAvailability) Check(req Request, today daterange.Date) Decision {
	return Resolve(a.BlockedDates, a.Reservations, req, today)
}

// Reserve re-checks and records the reservation in one step.
func (a *ListingAvailability) Reserve(bookingID string, req Request, today daterange.Date, now time.Time) error {
	for _, res := range a.Reservations {
		if res.BookingID == bookingID {
			return ErrDuplicateReservation
		}
	}
	decision := a.Check(req, today)
	if !decision.OK {
		if decision.Reason == ReasonOverlap {
			a.Record(OverbookingPrevented{ListingID: a.ListingID, BookingID: bookingID, Conflicting: decision.BookingID, At: now.UTC()})
		}
		return decision.Err()
	}
	norm := decision.Request
	a.Reservations = append(a.Reservations, Reservation{
		BookingID: bookingID,
		CheckIn:   norm.CheckIn,
		CheckOut:  norm.CheckOut,
		Status:    StatusPending,
	})
	a.UpdatedAt = now.UTC()
	a.Record(ReservationRecorded{ListingID: a.ListingID, BookingID: bookingID, CheckIn: norm.CheckIn, CheckOut: norm.CheckOut, At: a.UpdatedAt})
	return nil
}

// SetStatus moves a reservation along with its booking. Statuses that no
// longer hold dates free them for new requests.
func (a *ListingAvailability) SetStatus(bookingID string, status ReservationStatus, now time.Time) error {
	for i := range a.Reservations {
		if a.Reservations[i].BookingID != bookingID {
			continue
		}
		a.Reservations[i].Status = status
		a.UpdatedAt = now.UTC()
		if !status.Holds() {
			a.Record(ReservationReleased{ListingID: a.ListingID, BookingID: bookingID, Status: status, At: a.UpdatedAt})
		}
		return nil
	}
	return ErrReservationNotFound
}

// Release frees the dates held by bookingID.
func (a *ListingAvailability) Release(bookingID string, now time.Time) error {
	return a.SetStatus(bookingID, StatusCancelled, now)
}

// Block marks host-unavailable dates; already blocked dates are ignored.
func (a *ListingAvailability) Block(dates []daterange.Date, now time.Time) []daterange.Date {
	if a.BlockedDates == nil {
		a.BlockedDates = make(map[daterange.Date]struct{})
	}
	added := make([]daterange.Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, ok := a.BlockedDates[d]; ok {
			continue
		}
		a.BlockedDates[d] = struct{}{}
		added = append(added, d)
	}
	if len(added) > 0 {
		a.UpdatedAt = now.UTC()
		a.Record(DatesBlocked{ListingID: a.ListingID, Dates: added, At: a.UpdatedAt})
	}
	return added
}

// Unblock removes dates from the host-blocked set.
func (a *ListingAvailability) Unblock(dates []daterange.Date, now time.Time) []daterange.Date {
	removed := make([]daterange.Date, 0, len(dates))
	for _, d := range dates {
		if _, ok := a.BlockedDates[d]; !ok {
			continue
		}
		delete(a.BlockedDates, d)
		removed = append(removed, d)
	}
	if len(removed) > 0 {
		a.UpdatedAt = now.UTC()
		a.Record(DatesUnblocked{ListingID: a.ListingID, Dates: removed, At: a.UpdatedAt})
	}
	return removed
}

// SortedBlockedDates returns the blocked set in calendar order.
func (a *ListingAvailability) SortedBlockedDates() []daterange.Date {
	out := make([]daterange.Date, 0, len(a.BlockedDates))
	for d := range a.BlockedDates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// BookedRanges lists reservations that currently hold dates.
func (a *ListingAvailability) BookedRanges() []Reservation {
	out := make([]Reservation, 0, len(a.Reservations))
	for _, res := range a.Reservations {
		if res.Status.Holds() {
			out = append(out, res)
		}
	}
	return out
}

// Clone copies the document without pending events.
func (a *ListingAvailability) Clone() *ListingAvailability {
	out := &ListingAvailability{
		ListingID:    a.ListingID,
		HostID:       a.HostID,
		BlockedDates: make(map[daterange.Date]struct{}, len(a.BlockedDates)),
		Reservations: append([]Reservation(nil), a.Reservations...),
		Version:      a.Version,
		UpdatedAt:    a.UpdatedAt,
	}
	for d := range a.BlockedDates {
		out.BlockedDates[d] = struct{}{}
	}
	return out
}
