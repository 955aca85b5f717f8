package booking

import (
	"context"
	"errors"
	"time"

	"ecostay/internal/domain/availability"
	"ecostay/internal/domain/pricing"
	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/events"
	"ecostay/internal/domain/shared/money"
)

var (
	ErrInvalidGuests       = errors.New("booking: guests count must be positive")
	ErrInvalidState        = errors.New("booking: invalid state transition")
	ErrBookingNotFound     = errors.New("booking: not found")
	ErrGuestRequired       = errors.New("booking: guest id required")
	ErrUnknownPayment      = errors.New("booking: unknown payment method")
	ErrPaymentReplayed     = errors.New("booking: payment confirmation already used")
	ErrPaymentMismatch     = errors.New("booking: payment confirmation does not match booking total")
	ErrConfirmationInvalid = errors.New("booking: payment confirmation token invalid")
	ErrGuestsLimit         = errors.New("booking: guests exceed listing limit")
	ErrForbidden           = errors.New("booking: caller is not a party of this booking")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Reservation maps the booking status onto the availability document.
func (s Status) Reservation() availability.ReservationStatus {
	return availability.ReservationStatus(s)
}

type PaymentMethod string

const (
	PaymentWallet  PaymentMethod = "wallet"
	PaymentGateway PaymentMethod = "gateway"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentWallet || m == PaymentGateway
}

type Booking struct {
	ID               string
	ListingID        string
	GuestID          string
	HostID           string
	CheckIn          daterange.Date
	CheckOut         daterange.Date
	Guests           int
	BasePrice        money.Money
	ServiceFee       money.Money
	Discount         money.Money
	Total            money.Money
	PromoCode        string
	PaymentMethod    PaymentMethod
	PaymentReference string
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// ByPaymentReference finds the booking a gateway order was spent on.
	ByPaymentReference(ctx context.Context, ref string) (*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
}

type CreateParams struct {
	ID               string
	ListingID        string
	GuestID          string
	HostID           string
	CheckIn          daterange.Date
	CheckOut         daterange.Date
	Guests           int
	Quote            pricing.Quote
	PaymentMethod    PaymentMethod
	PaymentReference string
	CreatedAt        time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if params.GuestID == "" {
		return nil, ErrGuestRequired
	}
	if !params.PaymentMethod.Valid() {
		return nil, ErrUnknownPayment
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:               params.ID,
		ListingID:        params.ListingID,
		GuestID:          params.GuestID,
		HostID:           params.HostID,
		CheckIn:          params.CheckIn,
		CheckOut:         params.CheckOut,
		Guests:           params.Guests,
		BasePrice:        params.Quote.BasePrice,
		ServiceFee:       params.Quote.ServiceFee,
		Discount:         params.Quote.Discount,
		Total:            params.Quote.GrandTotal,
		PromoCode:        params.Quote.PromoCode,
		PaymentMethod:    params.PaymentMethod,
		PaymentReference: params.PaymentReference,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	b.Record(BookingRequested{
		BookingID:     b.ID,
		ListingID:     b.ListingID,
		GuestID:       b.GuestID,
		HostID:        b.HostID,
		CheckIn:       b.CheckIn,
		CheckOut:      b.CheckOut,
		Guests:        b.Guests,
		Total:         b.Total,
		PaymentMethod: b.PaymentMethod,
		At:            now,
	})
	return b, nil
}

func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	b.transition(StatusConfirmed, now)
	b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return nil
}

// Activate marks the stay as started.
func (b *Booking) Activate(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidState
	}
	b.transition(StatusActive, now)
	b.Record(BookingActivated{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if b.Status != StatusConfirmed && b.Status != StatusActive {
		return ErrInvalidState
	}
	b.transition(StatusCompleted, now)
	b.Record(BookingCompleted{BookingID: b.ID, HostID: b.HostID, HostPayout: b.HostPayout(), At: b.UpdatedAt})
	return nil
}

// Cancel returns the amount owed back to the guest.
func (b *Booking) Cancel(reason string, now time.Time) (money.Money, error) {
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return money.Money{}, ErrInvalidState
	}
	b.transition(StatusCancelled, now)
	b.Record(BookingCancelled{BookingID: b.ID, Refund: b.Total, Reason: reason, At: b.UpdatedAt})
	return b.Total, nil
}

// HostPayout is what the host earns once the stay completes: the total
// minus the platform service fee.
func (b *Booking) HostPayout() money.Money {
	amount := b.Total.Amount - b.ServiceFee.Amount
	if amount < 0 {
		amount = 0
	}
	return money.Money{Amount: amount, Currency: b.Total.Currency}
}

func (b *Booking) IsParty(userID string) bool {
	return userID != "" && (userID == b.GuestID || userID == b.HostID)
}

func (b *Booking) transition(status Status, now time.Time) {
	b.Status = status
	b.UpdatedAt = now.UTC()
}

// Clone copies the booking without pending events.
func (b *Booking) Clone() *Booking {
	c := &Booking{}
	*c = *b
	c.EventRecorder = events.EventRecorder{}
	return c
}
