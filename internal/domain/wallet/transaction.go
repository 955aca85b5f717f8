package wallet

import (
	"context"
	"sort"
	"time"
)

type TransactionType string

const (
	TypeCashIn          TransactionType = "cash_in"
	TypeCashOut         TransactionType = "cash_out"
	TypePayment         TransactionType = "payment"
	TypePaymentReceived TransactionType = "payment_received"
	TypeRefund          TransactionType = "refund"
)

func (t TransactionType) IsCredit() bool {
	switch t {
	case TypeCashIn, TypePaymentReceived, TypeRefund:
		return true
	}
	return false
}

func (t TransactionType) IsDebit() bool {
	return t == TypeCashOut || t == TypePayment
}

func (t TransactionType) Valid() bool {
	return t.IsCredit() || t.IsDebit()
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is an immutable ledger entry; only Status (with the gateway
// reference and final balance) changes, and only from pending.
type Transaction struct {
	ID                string
	UserID            string
	Type              TransactionType
	Amount            int64
	Currency          string
	BalanceAfter      int64
	Status            Status
	RelatedBookingID  string
	CounterpartyEmail string
	IdempotencyKey    string
	GatewayReference  string
	Description       string
	Sequence          int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
}

type TransactionRepository interface {
	Insert(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	ByID(ctx context.Context, id string) (*Transaction, error)
	ByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]*Transaction, error)
	ListPending(ctx context.Context, typ TransactionType, createdBefore time.Time) ([]*Transaction, error)
}

// SignedAmount is positive for credits and negative for debits.
func (t *Transaction) SignedAmount() int64 {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return -t.Amount
}

func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}

// SortChronologically orders by createdAt, breaking ties with the wallet sequence.
func SortChronologically(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].Sequence < txs[j].Sequence
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
}

// Replay rebuilds a balance from zero using completed transactions only.
func Replay(txs []*Transaction) int64 {
	ordered := append([]*Transaction(nil), txs...)
	SortChronologically(ordered)
	var balance int64
	for _, tx := range ordered {
		if tx.Status != StatusCompleted {
			continue
		}
		balance += tx.SignedAmount()
	}
	return balance
}

// InvariantReport is the result of checking a wallet against its ledger.
type InvariantReport struct {
	UserID          string `json:"user_id"`
	StoredBalance   int64  `json:"stored_balance"`
	ReplayedBalance int64  `json:"replayed_balance"`
	StoredHeld      int64  `json:"stored_held"`
	PendingPayouts  int64  `json:"pending_payouts"`
	Transactions    int    `json:"transactions"`
	Consistent      bool   `json:"consistent"`
}

// Verify checks balance == replay(completed), held == Σ pending cash_out and
// balance >= 0.
func Verify(w *Wallet, txs []*Transaction) InvariantReport {
	report := InvariantReport{
		UserID:          w.UserID,
		StoredBalance:   w.Balance,
		ReplayedBalance: Replay(txs),
		StoredHeld:      w.Held,
		Transactions:    len(txs),
	}
	for _, tx := range txs {
		if tx.Status == StatusPending && tx.Type == TypeCashOut {
			report.PendingPayouts += tx.Amount
		}
	}
	report.Consistent = report.StoredBalance == report.ReplayedBalance &&
		report.StoredHeld == report.PendingPayouts &&
		report.StoredBalance >= 0
	return report
}
