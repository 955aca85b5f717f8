package dto

import (
	"time"

	domainbooking "ecostay/internal/domain/booking"
	"ecostay/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type Booking struct {
	ID               string    `json:"id"`
	ListingID        string    `json:"listing_id"`
	GuestID          string    `json:"guest_id"`
	HostID           string    `json:"host_id"`
	CheckIn          string    `json:"check_in"`
	CheckOut         string    `json:"check_out,omitempty"`
	Guests           int       `json:"guests"`
	BasePrice        MoneyDTO  `json:"base_price"`
	ServiceFee       MoneyDTO  `json:"service_fee"`
	DiscountAmount   MoneyDTO  `json:"discount_amount"`
	TotalAmount      MoneyDTO  `json:"total_amount"`
	PromoCode        string    `json:"promo_code,omitempty"`
	PaymentMethod    string    `json:"payment_method"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:               b.ID,
		ListingID:        b.ListingID,
		GuestID:          b.GuestID,
		HostID:           b.HostID,
		CheckIn:          b.CheckIn.String(),
		CheckOut:         b.CheckOut.String(),
		Guests:           b.Guests,
		BasePrice:        MapMoney(b.BasePrice),
		ServiceFee:       MapMoney(b.ServiceFee),
		DiscountAmount:   MapMoney(b.Discount),
		TotalAmount:      MapMoney(b.Total),
		PromoCode:        b.PromoCode,
		PaymentMethod:    string(b.PaymentMethod),
		PaymentReference: b.PaymentReference,
		Status:           string(b.Status),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}
