package mongo

import (
	"time"

	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/money"
	domainwallet "ecostay/internal/domain/wallet"
)

// Calendar dates are stored as YYYY-MM-DD strings, which sort correctly.

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

func parseDate(raw string) daterange.Date {
	if raw == "" {
		return daterange.Date{}
	}
	d, err := daterange.Parse(raw)
	if err != nil {
		return daterange.Date{}
	}
	return d
}

type listingDocument struct {
	ID          string        `bson:"_id"`
	HostID      string        `bson:"host_id"`
	Title       string        `bson:"title"`
	Kind        string        `bson:"kind"`
	PricingMode string        `bson:"pricing_mode"`
	BasePrice   moneyDocument `bson:"base_price"`
	GuestsLimit int           `bson:"guests_limit"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
	Version     int64         `bson:"version"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          l.ID,
		HostID:      l.HostID,
		Title:       l.Title,
		Kind:        string(l.Kind),
		PricingMode: string(l.PricingMode),
		BasePrice:   newMoneyDocument(l.BasePrice),
		GuestsLimit: l.GuestsLimit,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
		Version:     l.Version,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          d.ID,
		HostID:      d.HostID,
		Title:       d.Title,
		Kind:        domainlistings.Kind(d.Kind),
		PricingMode: domainlistings.PricingMode(d.PricingMode),
		BasePrice:   d.BasePrice.toMoney(),
		GuestsLimit: d.GuestsLimit,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Version:     d.Version,
	}
}

type reservationDocument struct {
	BookingID string `bson:"booking_id"`
	CheckIn   string `bson:"check_in"`
	CheckOut  string `bson:"check_out,omitempty"`
	Status    string `bson:"status"`
}

type availabilityDocument struct {
	ID           string                `bson:"_id"`
	ListingID    string                `bson:"listing_id"`
	HostID       string                `bson:"host_id"`
	BlockedDates []string              `bson:"blocked_dates"`
	BookedRanges []reservationDocument `bson:"booked_ranges"`
	UpdatedAt    time.Time             `bson:"updated_at"`
	Version      int64                 `bson:"version"`
}

func newAvailabilityDocument(a *domainavailability.ListingAvailability) availabilityDocument {
	doc := availabilityDocument{
		ID:           domainavailability.DocumentID(a.ListingID, a.HostID),
		ListingID:    a.ListingID,
		HostID:       a.HostID,
		BlockedDates: make([]string, 0, len(a.BlockedDates)),
		BookedRanges: make([]reservationDocument, 0, len(a.Reservations)),
		UpdatedAt:    a.UpdatedAt,
		Version:      a.Version,
	}
	for _, d := range a.SortedBlockedDates() {
		doc.BlockedDates = append(doc.BlockedDates, d.String())
	}
	for _, r := range a.Reservations {
		doc.BookedRanges = append(doc.BookedRanges, reservationDocument{
			BookingID: r.BookingID,
			CheckIn:   r.CheckIn.String(),
			CheckOut:  r.CheckOut.String(),
			Status:    string(r.Status),
		})
	}
	return doc
}

func (d availabilityDocument) toAggregate() *domainavailability.ListingAvailability {
	a := domainavailability.New(d.ListingID, d.HostID)
	for _, raw := range d.BlockedDates {
		if date := parseDate(raw); !date.IsZero() {
			a.BlockedDates[date] = struct{}{}
		}
	}
	for _, r := range d.BookedRanges {
		a.Reservations = append(a.Reservations, domainavailability.Reservation{
			BookingID: r.BookingID,
			CheckIn:   parseDate(r.CheckIn),
			CheckOut:  parseDate(r.CheckOut),
			Status:    domainavailability.ReservationStatus(r.Status),
		})
	}
	a.UpdatedAt = d.UpdatedAt
	a.Version = d.Version
	return a
}

type bookingDocument struct {
	ID               string        `bson:"_id"`
	ListingID        string        `bson:"listing_id"`
	GuestID          string        `bson:"guest_id"`
	HostID           string        `bson:"host_id"`
	CheckIn          string        `bson:"check_in"`
	CheckOut         string        `bson:"check_out,omitempty"`
	Guests           int           `bson:"guests"`
	BasePrice        moneyDocument `bson:"base_price"`
	ServiceFee       moneyDocument `bson:"service_fee"`
	Discount         moneyDocument `bson:"discount_amount"`
	Total            moneyDocument `bson:"total_amount"`
	PromoCode        string        `bson:"promo_code,omitempty"`
	PaymentMethod    string        `bson:"payment_method"`
	PaymentReference string        `bson:"payment_reference,omitempty"`
	Status           string        `bson:"status"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
	Version          int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:               b.ID,
		ListingID:        b.ListingID,
		GuestID:          b.GuestID,
		HostID:           b.HostID,
		CheckIn:          b.CheckIn.String(),
		CheckOut:         b.CheckOut.String(),
		Guests:           b.Guests,
		BasePrice:        newMoneyDocument(b.BasePrice),
		ServiceFee:       newMoneyDocument(b.ServiceFee),
		Discount:         newMoneyDocument(b.Discount),
		Total:            newMoneyDocument(b.Total),
		PromoCode:        b.PromoCode,
		PaymentMethod:    string(b.PaymentMethod),
		PaymentReference: b.PaymentReference,
		Status:           string(b.Status),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:               d.ID,
		ListingID:        d.ListingID,
		GuestID:          d.GuestID,
		HostID:           d.HostID,
		CheckIn:          parseDate(d.CheckIn),
		CheckOut:         parseDate(d.CheckOut),
		Guests:           d.Guests,
		BasePrice:        d.BasePrice.toMoney(),
		ServiceFee:       d.ServiceFee.toMoney(),
		Discount:         d.Discount.toMoney(),
		Total:            d.Total.toMoney(),
		PromoCode:        d.PromoCode,
		PaymentMethod:    domainbooking.PaymentMethod(d.PaymentMethod),
		PaymentReference: d.PaymentReference,
		Status:           domainbooking.Status(d.Status),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		Version:          d.Version,
	}
}

type walletDocument struct {
	ID        string    `bson:"_id"`
	Balance   int64     `bson:"balance"`
	Held      int64     `bson:"held"`
	Currency  string    `bson:"currency"`
	Sequence  int64     `bson:"sequence"`
	UpdatedAt time.Time `bson:"updated_at"`
	Version   int64     `bson:"version"`
}

func newWalletDocument(w *domainwallet.Wallet) walletDocument {
	return walletDocument{
		ID:        w.UserID,
		Balance:   w.Balance,
		Held:      w.Held,
		Currency:  w.Currency,
		Sequence:  w.Sequence,
		UpdatedAt: w.UpdatedAt,
		Version:   w.Version,
	}
}

func (d walletDocument) toAggregate() *domainwallet.Wallet {
	w := domainwallet.New(d.ID, d.Currency)
	w.Balance = d.Balance
	w.Held = d.Held
	w.Sequence = d.Sequence
	w.UpdatedAt = d.UpdatedAt
	w.Version = d.Version
	return w
}

type transactionDocument struct {
	ID                string    `bson:"_id"`
	UserID            string    `bson:"user_id"`
	Type              string    `bson:"type"`
	Amount            int64     `bson:"amount"`
	Currency          string    `bson:"currency"`
	BalanceAfter      int64     `bson:"balance_after"`
	Status            string    `bson:"status"`
	RelatedBookingID  string    `bson:"related_booking_id,omitempty"`
	CounterpartyEmail string    `bson:"counterparty_email,omitempty"`
	IdempotencyKey    *string   `bson:"idempotency_key,omitempty"`
	GatewayReference  string    `bson:"gateway_reference,omitempty"`
	Description       string    `bson:"description,omitempty"`
	Sequence          int64     `bson:"sequence"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
	Version           int64     `bson:"version"`
}

func newTransactionDocument(tx *domainwallet.Transaction) transactionDocument {
	doc := transactionDocument{
		ID:                tx.ID,
		UserID:            tx.UserID,
		Type:              string(tx.Type),
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		BalanceAfter:      tx.BalanceAfter,
		Status:            string(tx.Status),
		RelatedBookingID:  tx.RelatedBookingID,
		CounterpartyEmail: tx.CounterpartyEmail,
		GatewayReference:  tx.GatewayReference,
		Description:       tx.Description,
		Sequence:          tx.Sequence,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
		Version:           tx.Version,
	}
	// absent rather than empty, so the sparse unique index ignores it
	if tx.IdempotencyKey != "" {
		key := tx.IdempotencyKey
		doc.IdempotencyKey = &key
	}
	return doc
}

func (d transactionDocument) toAggregate() *domainwallet.Transaction {
	tx := &domainwallet.Transaction{
		ID:                d.ID,
		UserID:            d.UserID,
		Type:              domainwallet.TransactionType(d.Type),
		Amount:            d.Amount,
		Currency:          d.Currency,
		BalanceAfter:      d.BalanceAfter,
		Status:            domainwallet.Status(d.Status),
		RelatedBookingID:  d.RelatedBookingID,
		CounterpartyEmail: d.CounterpartyEmail,
		GatewayReference:  d.GatewayReference,
		Description:       d.Description,
		Sequence:          d.Sequence,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
	if d.IdempotencyKey != nil {
		tx.IdempotencyKey = *d.IdempotencyKey
	}
	return tx
}
