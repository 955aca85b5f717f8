package memory

import (
	"context"
	"sync"

	appoutbox "ecostay/internal/app/outbox"
	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainwallet "ecostay/internal/domain/wallet"
)

// Staged lists the document ids a unit is about to write.
type Staged struct {
	Listings     []string
	Availability []string
	Bookings     []string
	Wallets      []string
	Transactions []string
	Events       []string
}

// CommitHook runs inside the commit critical section before anything is
// applied. A non-nil error aborts the commit.
type CommitHook func(ctx context.Context, staged Staged) error

// Store is the shared in-memory state behind every unit of work. Units read
// snapshots, stage writes, and apply them in one short critical section at
// commit after checking every version they read.
type Store struct {
	mu           sync.Mutex
	listings     map[string]*domainlistings.Listing
	availability map[string]*domainavailability.ListingAvailability
	bookings     map[string]*domainbooking.Booking
	paymentRefs  map[string]string
	wallets      map[string]*domainwallet.Wallet
	transactions map[string]*domainwallet.Transaction
	txKeys       map[string]string
	outbox       *Outbox

	hookMu sync.Mutex
	hook   CommitHook
}

func NewStore() *Store {
	return &Store{
		listings:     make(map[string]*domainlistings.Listing),
		availability: make(map[string]*domainavailability.ListingAvailability),
		bookings:     make(map[string]*domainbooking.Booking),
		paymentRefs:  make(map[string]string),
		wallets:      make(map[string]*domainwallet.Wallet),
		transactions: make(map[string]*domainwallet.Transaction),
		txKeys:       make(map[string]string),
		outbox:       NewOutbox(),
	}
}

// SetCommitHook installs h; nil removes it.
func (s *Store) SetCommitHook(h CommitHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hook = h
}

func (s *Store) commitHook() CommitHook {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.hook
}

// Outbox exposes the committed event records.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

func (s *Store) commit(ctx context.Context, u *Unit) error {
	hook := s.commitHook()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range u.listings {
		if current := storedVersion(s.listings[id]); current != l.Version {
			return uow.ErrStorageConflict
		}
	}
	for id, a := range u.availability {
		if current := storedVersion(s.availability[id]); current != a.Version {
			return uow.ErrStorageConflict
		}
	}
	for id, b := range u.bookings {
		if current := storedVersion(s.bookings[id]); current != b.Version {
			return uow.ErrStorageConflict
		}
		if b.PaymentReference != "" {
			if owner, ok := s.paymentRefs[b.PaymentReference]; ok && owner != id {
				return uow.ErrStorageConflict
			}
		}
	}
	for id, w := range u.wallets {
		if current := storedVersion(s.wallets[id]); current != w.Version {
			return uow.ErrStorageConflict
		}
	}
	for id, tx := range u.transactions {
		if current := storedVersion(s.transactions[id]); current != tx.Version {
			return uow.ErrStorageConflict
		}
		if tx.IdempotencyKey != "" {
			if owner, ok := s.txKeys[tx.IdempotencyKey]; ok && owner != id {
				return uow.ErrStorageConflict
			}
		}
	}
	if hook != nil {
		if err := hook(ctx, u.staged()); err != nil {
			return err
		}
	}

	for id, l := range u.listings {
		l.Version++
		s.listings[id] = cloneListing(l)
	}
	for id, a := range u.availability {
		a.Version++
		s.availability[id] = a.Clone()
	}
	for id, b := range u.bookings {
		b.Version++
		s.bookings[id] = b.Clone()
		if b.PaymentReference != "" {
			s.paymentRefs[b.PaymentReference] = id
		}
	}
	for id, w := range u.wallets {
		w.Version++
		s.wallets[id] = w.Clone()
	}
	for id, tx := range u.transactions {
		tx.Version++
		s.transactions[id] = tx.Clone()
		if tx.IdempotencyKey != "" {
			s.txKeys[tx.IdempotencyKey] = id
		}
	}
	s.outbox.append(u.events...)
	return nil
}

func storedVersion(doc any) int64 {
	switch v := doc.(type) {
	case *domainlistings.Listing:
		if v != nil {
			return v.Version
		}
	case *domainavailability.ListingAvailability:
		if v != nil {
			return v.Version
		}
	case *domainbooking.Booking:
		if v != nil {
			return v.Version
		}
	case *domainwallet.Wallet:
		if v != nil {
			return v.Version
		}
	case *domainwallet.Transaction:
		if v != nil {
			return v.Version
		}
	}
	return 0
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	c := *l
	return &c
}

var _ appoutbox.Outbox = (*Outbox)(nil)
