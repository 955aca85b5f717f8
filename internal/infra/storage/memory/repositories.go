package memory

import (
	"context"
	"time"

	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainwallet "ecostay/internal/domain/wallet"
)

type listingRepo struct{ u *Unit }

func (r listingRepo) ByID(_ context.Context, id string) (*domainlistings.Listing, error) {
	if l, ok := r.u.listings[id]; ok {
		return l, nil
	}
	r.u.store.mu.Lock()
	defer r.u.store.mu.Unlock()
	l, ok := r.u.store.listings[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return cloneListing(l), nil
}

func (r listingRepo) Save(_ context.Context, l *domainlistings.Listing) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.listings[l.ID] = l
	return nil
}

type availabilityRepo struct{ u *Unit }

func (r availabilityRepo) Get(_ context.Context, listingID, hostID string) (*domainavailability.ListingAvailability, error) {
	id := domainavailability.DocumentID(listingID, hostID)
	if a, ok := r.u.availability[id]; ok {
		return a, nil
	}
	r.u.store.mu.Lock()
	defer r.u.store.mu.Unlock()
	if a, ok := r.u.store.availability[id]; ok {
		return a.Clone(), nil
	}
	return domainavailability.New(listingID, hostID), nil
}

func (r availabilityRepo) Save(_ context.Context, a *domainavailability.ListingAvailability) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.availability[domainavailability.DocumentID(a.ListingID, a.HostID)] = a
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(_ context.Context, id string) (*domainbooking.Booking, error) {
	if b, ok := r.u.bookings[id]; ok {
		return b, nil
	}
	r.u.store.mu.Lock()
	defer r.u.store.mu.Unlock()
	b, ok := r.u.store.bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r bookingRepo) Save(_ context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.bookings[b.ID] = b
	return nil
}

func (r bookingRepo) ByPaymentReference(_ context.Context, ref string) (*domainbooking.Booking, error) {
	for _, b := range r.u.bookings {
		if ref != "" && b.PaymentReference == ref {
			return b, nil
		}
	}
	r.u.store.mu.Lock()
	defer r.u.store.mu.Unlock()
	id, ok := r.u.store.paymentRefs[ref]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return r.u.store.bookings[id].Clone(), nil
}

func (r bookingRepo) ListByGuest(_ context.Context, guestID string) ([]*domainbooking.Booking, error) {
	r.u.store.mu.Lock()
	out := make([]*domainbooking.Booking, 0)
	for id, b := range r.u.store.bookings {
		if _, staged := r.u.bookings[id]; staged {
			continue
		}
		if b.GuestID == guestID {
			out = append(out, b.Clone())
		}
	}
	r.u.store.mu.Unlock()
	for _, b := range r.u.bookings {
		if b.GuestID == guestID {
			out = append(out, b)
		}
	}
	return out, nil
}

type walletRepo struct{ u *Unit }

func (r walletRepo) Get(_ context.Context, userID string) (*domainwallet.Wallet, error) {
	if w, ok := r.u.wallets[userID]; ok {
		return w, nil
	}
	r.u.store.mu.Lock()
	defer r.u.store.mu.Unlock()
	if w, ok := r.u.store.wallets[userID]; ok {
		return w.Clone(), nil
	}
	return domainwallet.New(userID, ""), nil
}

func (r walletRepo) Save(_ context.Context, w *domainwallet.Wallet) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.wallets[w.UserID] = w
	return nil
}

type transactionRepo struct{ u *Unit }

func (r transactionRepo) Insert(_ context.Context, tx *domainwallet.Transaction) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.transactions[tx.ID] = tx
	return nil
}

func (r transactionRepo) Update(ctx context.Context, tx *domainwallet.Transaction) error {
	return r.Insert(ctx, tx)
}

func (r transactionRepo) ByID(_ context.Context, id string) (*domainwallet.Transaction, error) {
	if tx, ok := r.u.transactions[id]; ok {
		return tx, nil
	}
	r.u.store.mu.Lock()
	defer r.u.store.mu.Unlock()
	tx, ok := r.u.store.transactions[id]
	if !ok {
		return nil, domainwallet.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (r transactionRepo) ByIdempotencyKey(ctx context.Context, key string) (*domainwallet.Transaction, error) {
	if key != "" {
		for _, tx := range r.u.transactions {
			if tx.IdempotencyKey == key {
				return tx, nil
			}
		}
	}
	r.u.store.mu.Lock()
	id, ok := r.u.store.txKeys[key]
	r.u.store.mu.Unlock()
	if !ok || key == "" {
		return nil, domainwallet.ErrTransactionNotFound
	}
	return r.ByID(ctx, id)
}

func (r transactionRepo) ListByUser(_ context.Context, userID string) ([]*domainwallet.Transaction, error) {
	return r.list(func(tx *domainwallet.Transaction) bool { return tx.UserID == userID }), nil
}

func (r transactionRepo) ListPending(_ context.Context, typ domainwallet.TransactionType, createdBefore time.Time) ([]*domainwallet.Transaction, error) {
	return r.list(func(tx *domainwallet.Transaction) bool {
		return tx.Status == domainwallet.StatusPending && tx.Type == typ && tx.CreatedAt.Before(createdBefore)
	}), nil
}

func (r transactionRepo) list(match func(*domainwallet.Transaction) bool) []*domainwallet.Transaction {
	out := make([]*domainwallet.Transaction, 0)
	r.u.store.mu.Lock()
	for id, tx := range r.u.store.transactions {
		if _, staged := r.u.transactions[id]; staged {
			continue
		}
		if match(tx) {
			out = append(out, tx.Clone())
		}
	}
	r.u.store.mu.Unlock()
	for _, tx := range r.u.transactions {
		if match(tx) {
			out = append(out, tx)
		}
	}
	domainwallet.SortChronologically(out)
	return out
}
