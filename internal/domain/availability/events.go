package availability

import (
	"time"

	"ecostay/internal/domain/shared/daterange"
)

type ReservationRecorded struct {
	ListingID string         `json:"listing_id"`
	BookingID string         `json:"booking_id"`
	CheckIn   daterange.Date `json:"check_in"`
	CheckOut  daterange.Date `json:"check_out,omitempty"`
	At        time.Time      `json:"at"`
}

func (e ReservationRecorded) EventName() string     { return "calendar.reserved" }
func (e ReservationRecorded) AggregateID() string   { return e.ListingID }
func (e ReservationRecorded) OccurredAt() time.Time { return e.At }

type ReservationReleased struct {
	ListingID string            `json:"listing_id"`
	BookingID string            `json:"booking_id"`
	Status    ReservationStatus `json:"status"`
	At        time.Time         `json:"at"`
}

func (e ReservationReleased) EventName() string     { return "calendar.released" }
func (e ReservationReleased) AggregateID() string   { return e.ListingID }
func (e ReservationReleased) OccurredAt() time.Time { return e.At }

type DatesBlocked struct {
	ListingID string           `json:"listing_id"`
	Dates     []daterange.Date `json:"dates"`
	At        time.Time        `json:"at"`
}

func (e DatesBlocked) EventName() string     { return "calendar.blocked" }
func (e DatesBlocked) AggregateID() string   { return e.ListingID }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesUnblocked struct {
	ListingID string           `json:"listing_id"`
	Dates     []daterange.Date `json:"dates"`
	At        time.Time        `json:"at"`
}

func (e DatesUnblocked) EventName() string     { return "calendar.unblocked" }
func (e DatesUnblocked) AggregateID() string   { return e.ListingID }
func (e DatesUnblocked) OccurredAt() time.Time { return e.At }

type OverbookingPrevented struct {
	ListingID   string    `json:"listing_id"`
	BookingID   string    `json:"booking_id"`
	Conflicting string    `json:"conflicting_booking_id"`
	At          time.Time `json:"at"`
}

func (e OverbookingPrevented) EventName() string     { return "calendar.overbooking_prevented" }
func (e OverbookingPrevented) AggregateID() string   { return e.ListingID }
func (e OverbookingPrevented) OccurredAt() time.Time { return e.At }
