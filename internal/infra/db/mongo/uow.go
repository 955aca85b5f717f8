package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "ecostay/internal/app/outbox"
	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainwallet "ecostay/internal/domain/wallet"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Repositories read the session from ctx, so a unit only works with the
// context Run hands to its callback.
type Factory struct {
	DB     *mongo.Database
	Outbox appoutbox.Outbox

	listings     *ListingRepository
	availability *AvailabilityRepository
	bookings     *BookingRepository
	wallets      *WalletRepository
	transactions *TransactionRepository
}

func NewFactory(db *mongo.Database, outbox appoutbox.Outbox) *Factory {
	return &Factory{
		DB:           db,
		Outbox:       outbox,
		listings:     NewListingRepository(db),
		availability: NewAvailabilityRepository(db),
		bookings:     NewBookingRepository(db),
		wallets:      NewWalletRepository(db),
		transactions: NewTransactionRepository(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f == nil || f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{factory: f, session: session}, nil
}

type Unit struct {
	factory *Factory
	session mongo.Session
}

func (u *Unit) Listings() domainlistings.Repository {
	return u.factory.listings
}

func (u *Unit) Availability() domainavailability.Repository {
	return u.factory.availability
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.factory.bookings
}

func (u *Unit) Wallets() domainwallet.Repository {
	return u.factory.wallets
}

func (u *Unit) Transactions() domainwallet.TransactionRepository {
	return u.factory.transactions
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return u.factory.Outbox
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return translate(err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory = (*Factory)(nil)
	_ uow.Injector   = (*Unit)(nil)
)
