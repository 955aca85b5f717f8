package uow

import (
	"context"
	"errors"

	"ecostay/internal/app/outbox"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainwallet "ecostay/internal/domain/wallet"
)

// ErrStorageConflict signals an optimistic concurrency failure: a document
// changed between read and commit. Callers re-read and retry.
var ErrStorageConflict = errors.New("uow: storage conflict")

// UnitOfWork coordinates repositories inside a transaction boundary. Writes
// become visible to other units only after Commit succeeds.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	// Availability is the Availability Store.
	Availability() domainavailability.Repository
	Bookings() domainbooking.Repository
	// Wallets and Transactions form the Ledger Store.
	Wallets() domainwallet.Repository
	Transactions() domainwallet.TransactionRepository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
