package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainwallet "ecostay/internal/domain/wallet"
)

const (
	listingsCollection     = "listings"
	availabilityCollection = "listingAvailability"
	bookingsCollection     = "bookings"
	walletsCollection      = "wallets"
	transactionsCollection = "walletTransactions"
)

// saveVersioned upserts doc only while the stored version still equals
// version. A lost race surfaces as a duplicate _id on the upsert.
func saveVersioned(ctx context.Context, col *mongo.Collection, id string, version int64, doc any) error {
	filter := bson.M{"_id": id, "version": version}
	res, err := col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return uow.ErrStorageConflict
	}
	return nil
}

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection)}
}

func (r *ListingRepository) ByID(ctx context.Context, id string) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := newListingDocument(l)
	doc.Version = l.Version + 1
	if err := saveVersioned(ctx, r.col, l.ID, l.Version, doc); err != nil {
		return err
	}
	l.Version = doc.Version
	return nil
}

type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection(availabilityCollection)}
}

func (r *AvailabilityRepository) Get(ctx context.Context, listingID, hostID string) (*domainavailability.ListingAvailability, error) {
	var doc availabilityDocument
	err := r.col.FindOne(ctx, bson.M{"_id": domainavailability.DocumentID(listingID, hostID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domainavailability.New(listingID, hostID), nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *AvailabilityRepository) Save(ctx context.Context, a *domainavailability.ListingAvailability) error {
	doc := newAvailabilityDocument(a)
	doc.Version = a.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, a.Version, doc); err != nil {
		return err
	}
	a.Version = doc.Version
	return nil
}

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id string) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *BookingRepository) ByPaymentReference(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	if ref == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	return r.findOne(ctx, bson.M{"payment_reference": ref})
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"guest_id": guestID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if err := saveVersioned(ctx, r.col, b.ID, b.Version, doc); err != nil {
		return err
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

type WalletRepository struct {
	col *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) *WalletRepository {
	return &WalletRepository{col: db.Collection(walletsCollection)}
}

func (r *WalletRepository) Get(ctx context.Context, userID string) (*domainwallet.Wallet, error) {
	var doc walletDocument
	err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domainwallet.New(userID, ""), nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *WalletRepository) Save(ctx context.Context, w *domainwallet.Wallet) error {
	doc := newWalletDocument(w)
	doc.Version = w.Version + 1
	if err := saveVersioned(ctx, r.col, w.UserID, w.Version, doc); err != nil {
		return err
	}
	w.Version = doc.Version
	return nil
}

type TransactionRepository struct {
	col *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{col: db.Collection(transactionsCollection)}
}

// Insert fails with uow.ErrStorageConflict when the idempotency key is taken.
func (r *TransactionRepository) Insert(ctx context.Context, tx *domainwallet.Transaction) error {
	doc := newTransactionDocument(tx)
	doc.Version = tx.Version + 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	tx.Version = doc.Version
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *domainwallet.Transaction) error {
	doc := newTransactionDocument(tx)
	doc.Version = tx.Version + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": tx.ID, "version": tx.Version}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return uow.ErrStorageConflict
	}
	tx.Version = doc.Version
	return nil
}

func (r *TransactionRepository) ByID(ctx context.Context, id string) (*domainwallet.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *TransactionRepository) ByIdempotencyKey(ctx context.Context, key string) (*domainwallet.Transaction, error) {
	if key == "" {
		return nil, domainwallet.ErrTransactionNotFound
	}
	return r.findOne(ctx, bson.M{"idempotency_key": key})
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]*domainwallet.Transaction, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *TransactionRepository) ListPending(ctx context.Context, typ domainwallet.TransactionType, createdBefore time.Time) ([]*domainwallet.Transaction, error) {
	return r.find(ctx, bson.M{
		"status":     string(domainwallet.StatusPending),
		"type":       string(typ),
		"created_at": bson.M{"$lt": createdBefore},
	})
}

func (r *TransactionRepository) find(ctx context.Context, filter bson.M) ([]*domainwallet.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "sequence", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []transactionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainwallet.Transaction, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func (r *TransactionRepository) findOne(ctx context.Context, filter bson.M) (*domainwallet.Transaction, error) {
	var doc transactionDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainwallet.ErrTransactionNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

var (
	_ domainlistings.Repository          = (*ListingRepository)(nil)
	_ domainavailability.Repository      = (*AvailabilityRepository)(nil)
	_ domainbooking.Repository           = (*BookingRepository)(nil)
	_ domainwallet.Repository            = (*WalletRepository)(nil)
	_ domainwallet.TransactionRepository = (*TransactionRepository)(nil)
)
