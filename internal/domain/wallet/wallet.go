package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"ecostay/internal/domain/shared/events"
)

var (
	ErrInvalidAmount       = errors.New("wallet: amount must be positive")
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	ErrInvalidType         = errors.New("wallet: transaction type not allowed for this operation")
	ErrInvalidTransition   = errors.New("wallet: only pending transactions can be settled")
	ErrTransactionNotFound = errors.New("wallet: transaction not found")
	ErrUserRequired        = errors.New("wallet: user id required")
)

// Wallet holds one user's balance in minor units. Balance equals the signed
// sum of completed transactions; Held is what pending payouts have reserved.
type Wallet struct {
	UserID    string
	Balance   int64
	Held      int64
	Currency  string
	Sequence  int64
	Version   int64
	UpdatedAt time.Time
	events.EventRecorder
}

type Repository interface {
	// Get returns the stored wallet or a fresh zero wallet at version 0.
	Get(ctx context.Context, userID string) (*Wallet, error)
	Save(ctx context.Context, w *Wallet) error
}

// Metadata annotates a ledger mutation.
type Metadata struct {
	RelatedBookingID  string
	CounterpartyEmail string
	IdempotencyKey    string
	Description       string
}

func New(userID, currency string) *Wallet {
	return &Wallet{UserID: userID, Currency: strings.ToUpper(currency)}
}

// Available is the spendable part of the balance.
func (w *Wallet) Available() int64 {
	return w.Balance - w.Held
}

// Credit adds amount and returns the completed transaction.
func (w *Wallet) Credit(id string, amount int64, typ TransactionType, meta Metadata, now time.Time) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !typ.IsCredit() {
		return nil, ErrInvalidType
	}
	w.Balance += amount
	return w.append(id, amount, typ, StatusCompleted, meta, now), nil
}

// Debit removes amount when the available balance covers it.
func (w *Wallet) Debit(id string, amount int64, typ TransactionType, meta Metadata, now time.Time) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !typ.IsDebit() {
		return nil, ErrInvalidType
	}
	if w.Available() < amount {
		return nil, ErrInsufficientBalance
	}
	w.Balance -= amount
	return w.append(id, amount, typ, StatusCompleted, meta, now), nil
}

// HoldPayout reserves funds for an outgoing payout and returns the pending
// cash_out transaction. Balance is untouched until SettlePayout.
func (w *Wallet) HoldPayout(id string, amount int64, meta Metadata, now time.Time) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if w.Available() < amount {
		return nil, ErrInsufficientBalance
	}
	w.Held += amount
	return w.append(id, amount, TypeCashOut, StatusPending, meta, now), nil
}

// SettlePayout finalizes a pending payout: completed moves the held amount out
// of the balance, failed returns it to the available balance.
func (w *Wallet) SettlePayout(tx *Transaction, completed bool, gatewayRef string, now time.Time) error {
	if tx.Status != StatusPending || tx.Type != TypeCashOut {
		return ErrInvalidTransition
	}
	w.Held -= tx.Amount
	if w.Held < 0 {
		w.Held = 0
	}
	status := StatusFailed
	if completed {
		w.Balance -= tx.Amount
		status = StatusCompleted
	}
	tx.Status = status
	tx.BalanceAfter = w.Balance
	if gatewayRef != "" {
		tx.GatewayReference = gatewayRef
	}
	tx.UpdatedAt = now.UTC()
	w.UpdatedAt = tx.UpdatedAt
	w.Record(TransactionSettled{UserID: w.UserID, TransactionID: tx.ID, Status: status, Amount: tx.Amount, BalanceAfter: w.Balance, GatewayReference: tx.GatewayReference, At: tx.UpdatedAt})
	return nil
}

func (w *Wallet) append(id string, amount int64, typ TransactionType, status Status, meta Metadata, now time.Time) *Transaction {
	now = now.UTC()
	w.Sequence++
	w.UpdatedAt = now
	balanceAfter := w.Balance
	if status == StatusPending {
		balanceAfter = w.Balance - amount
	}
	tx := &Transaction{
		ID:                id,
		UserID:            w.UserID,
		Type:              typ,
		Amount:            amount,
		Currency:          w.Currency,
		BalanceAfter:      balanceAfter,
		Status:            status,
		RelatedBookingID:  meta.RelatedBookingID,
		CounterpartyEmail: meta.CounterpartyEmail,
		IdempotencyKey:    meta.IdempotencyKey,
		Description:       meta.Description,
		Sequence:          w.Sequence,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	w.Record(TransactionRecorded{UserID: w.UserID, TransactionID: id, Type: typ, Status: status, Amount: amount, BalanceAfter: balanceAfter, RelatedBookingID: meta.RelatedBookingID, At: now})
	return tx
}

// Clone copies the wallet without pending events.
func (w *Wallet) Clone() *Wallet {
	return &Wallet{
		UserID:    w.UserID,
		Balance:   w.Balance,
		Held:      w.Held,
		Currency:  w.Currency,
		Sequence:  w.Sequence,
		Version:   w.Version,
		UpdatedAt: w.UpdatedAt,
	}
}
