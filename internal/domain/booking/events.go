package booking

import (
	"time"

	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/money"
)

type BookingRequested struct {
	BookingID     string         `json:"booking_id"`
	ListingID     string         `json:"listing_id"`
	GuestID       string         `json:"guest_id"`
	HostID        string         `json:"host_id"`
	CheckIn       daterange.Date `json:"check_in"`
	CheckOut      daterange.Date `json:"check_out"`
	Guests        int            `json:"guests"`
	Total         money.Money    `json:"total"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	At            time.Time      `json:"at"`
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return e.BookingID }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID string    `json:"booking_id"`
	ListingID string    `json:"listing_id"`
	At        time.Time `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return e.BookingID }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingActivated struct {
	BookingID string    `json:"booking_id"`
	ListingID string    `json:"listing_id"`
	At        time.Time `json:"at"`
}

func (e BookingActivated) EventName() string     { return "booking.activated" }
func (e BookingActivated) AggregateID() string   { return e.BookingID }
func (e BookingActivated) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID  string      `json:"booking_id"`
	HostID     string      `json:"host_id"`
	HostPayout money.Money `json:"host_payout"`
	At         time.Time   `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return e.BookingID }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID string      `json:"booking_id"`
	Refund    money.Money `json:"refund"`
	Reason    string      `json:"reason,omitempty"`
	At        time.Time   `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return e.BookingID }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

// AttemptFailed is published when an attempt ends in Rejected or PaymentFailed.
type AttemptFailed struct {
	AttemptID string       `json:"attempt_id"`
	ListingID string       `json:"listing_id"`
	GuestID   string       `json:"guest_id"`
	State     AttemptState `json:"state"`
	Reason    string       `json:"reason"`
	At        time.Time    `json:"at"`
}

func (e AttemptFailed) EventName() string     { return "booking.attempt_failed" }
func (e AttemptFailed) AggregateID() string   { return e.AttemptID }
func (e AttemptFailed) OccurredAt() time.Time { return e.At }
