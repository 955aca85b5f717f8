package wallet

import (
	"context"
	"errors"

	"ecostay/internal/app/dto"
	"ecostay/internal/app/ledger"
	domainwallet "ecostay/internal/domain/wallet"
)

const (
	cashInKey  = "wallet.cash_in"
	payoutKey  = "wallet.payout"
	balanceKey = "wallet.balance"
	historyKey = "wallet.history"
	verifyKey  = "wallet.verify"
)

var ErrIdempotencyKeyRequired = errors.New("wallet: Idempotency-Key header required")

// Ledger is the subset of the ledger service the wallet endpoints use.
type Ledger interface {
	Credit(ctx context.Context, userID string, amount int64, typ domainwallet.TransactionType, meta domainwallet.Metadata) (ledger.Result, error)
	Payout(ctx context.Context, userID string, amount int64, destinationEmail, idempotencyKey string) (ledger.PayoutResult, error)
	Balance(ctx context.Context, userID string) (ledger.WalletView, error)
	History(ctx context.Context, userID string) ([]*domainwallet.Transaction, error)
	VerifyInvariant(ctx context.Context, userID string) (domainwallet.InvariantReport, error)
}

// CashInCommand tops up a wallet from an already captured external payment.
type CashInCommand struct {
	UserID          string `validate:"required"`
	Amount          int64  `validate:"gt=0"`
	Reference       string `validate:"max=128"`
	IdempotencyKeyV string `validate:"required"`
}

func (c CashInCommand) Key() string            { return cashInKey }
func (c CashInCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CashInCommand) ResultPrototype() any   { return &ledger.Result{} }
func (c CashInCommand) ActorID() string        { return c.UserID }
func (c CashInCommand) ManagesUnits()          {}

type PayoutCommand struct {
	UserID           string `validate:"required"`
	Amount           int64  `validate:"gt=0"`
	DestinationEmail string `validate:"required"`
	IdempotencyKeyV  string `validate:"required"`
}

func (c PayoutCommand) Key() string     { return payoutKey }
func (c PayoutCommand) ActorID() string { return c.UserID }
func (c PayoutCommand) ManagesUnits()   {}

type BalanceQuery struct {
	UserID string `validate:"required"`
}

func (q BalanceQuery) Key() string     { return balanceKey }
func (q BalanceQuery) ActorID() string { return q.UserID }

type HistoryQuery struct {
	UserID string `validate:"required"`
}

func (q HistoryQuery) Key() string     { return historyKey }
func (q HistoryQuery) ActorID() string { return q.UserID }

type VerifyQuery struct {
	UserID string `validate:"required"`
}

func (q VerifyQuery) Key() string     { return verifyKey }
func (q VerifyQuery) ActorID() string { return q.UserID }

// Handler exposes the ledger to the buses.
type Handler struct {
	Ledger Ledger
}

func (h *Handler) CashIn(ctx context.Context, cmd CashInCommand) (ledger.Result, error) {
	if cmd.IdempotencyKeyV == "" {
		return ledger.Result{}, ErrIdempotencyKeyRequired
	}
	return h.Ledger.Credit(ctx, cmd.UserID, cmd.Amount, domainwallet.TypeCashIn, domainwallet.Metadata{
		IdempotencyKey: "cash-in:" + cmd.UserID + ":" + cmd.IdempotencyKeyV,
		Description:    cmd.Reference,
	})
}

// Payout keeps the ledger's PayoutError intact so transports can surface
// the transaction id of a payout left pending.
func (h *Handler) Payout(ctx context.Context, cmd PayoutCommand) (ledger.PayoutResult, error) {
	if cmd.IdempotencyKeyV == "" {
		return ledger.PayoutResult{}, ErrIdempotencyKeyRequired
	}
	return h.Ledger.Payout(ctx, cmd.UserID, cmd.Amount, cmd.DestinationEmail, "payout:"+cmd.UserID+":"+cmd.IdempotencyKeyV)
}

func (h *Handler) Balance(ctx context.Context, q BalanceQuery) (ledger.WalletView, error) {
	return h.Ledger.Balance(ctx, q.UserID)
}

func (h *Handler) History(ctx context.Context, q HistoryQuery) (dto.TransactionCollection, error) {
	txs, err := h.Ledger.History(ctx, q.UserID)
	if err != nil {
		return dto.TransactionCollection{}, err
	}
	return dto.MapTransactions(txs), nil
}

func (h *Handler) Verify(ctx context.Context, q VerifyQuery) (domainwallet.InvariantReport, error) {
	return h.Ledger.VerifyInvariant(ctx, q.UserID)
}
