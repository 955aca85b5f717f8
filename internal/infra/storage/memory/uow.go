package memory

import (
	"context"
	"errors"

	appoutbox "ecostay/internal/app/outbox"
	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainwallet "ecostay/internal/domain/wallet"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrReadOnly             = errors.New("memory: write in read-only unit")
	ErrUnitClosed           = errors.New("memory: unit already committed or rolled back")
)

// Factory opens units over a shared Store.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:        f.Store,
		readOnly:     opts.ReadOnly,
		listings:     make(map[string]*domainlistings.Listing),
		availability: make(map[string]*domainavailability.ListingAvailability),
		bookings:     make(map[string]*domainbooking.Booking),
		wallets:      make(map[string]*domainwallet.Wallet),
		transactions: make(map[string]*domainwallet.Transaction),
	}, nil
}

// Unit stages writes until Commit. It is not safe for concurrent use; one
// unit belongs to one handler invocation.
type Unit struct {
	store    *Store
	readOnly bool
	closed   bool

	listings     map[string]*domainlistings.Listing
	availability map[string]*domainavailability.ListingAvailability
	bookings     map[string]*domainbooking.Booking
	wallets      map[string]*domainwallet.Wallet
	transactions map[string]*domainwallet.Transaction
	events       []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.Repository {
	return listingRepo{u}
}

func (u *Unit) Availability() domainavailability.Repository {
	return availabilityRepo{u}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return bookingRepo{u}
}

func (u *Unit) Wallets() domainwallet.Repository {
	return walletRepo{u}
}

func (u *Unit) Transactions() domainwallet.TransactionRepository {
	return transactionRepo{u}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return unitOutbox{u}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true
	if u.readOnly {
		return nil
	}
	return u.store.commit(ctx, u)
}

func (u *Unit) Rollback(context.Context) error {
	u.closed = true
	return nil
}

func (u *Unit) writable() error {
	switch {
	case u.closed:
		return ErrUnitClosed
	case u.readOnly:
		return ErrReadOnly
	}
	return nil
}

func (u *Unit) staged() Staged {
	var st Staged
	for id := range u.listings {
		st.Listings = append(st.Listings, id)
	}
	for id := range u.availability {
		st.Availability = append(st.Availability, id)
	}
	for id := range u.bookings {
		st.Bookings = append(st.Bookings, id)
	}
	for id := range u.wallets {
		st.Wallets = append(st.Wallets, id)
	}
	for id := range u.transactions {
		st.Transactions = append(st.Transactions, id)
	}
	for _, ev := range u.events {
		st.Events = append(st.Events, ev.Name)
	}
	return st
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.events = append(o.u.events, record)
	return nil
}

func (o unitOutbox) Flush(context.Context) error { return nil }

var _ uow.UoWFactory = Factory{}
