package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ecostay/internal/app/outbox"
	"ecostay/internal/app/policies"
	"ecostay/internal/app/uow"
	"ecostay/internal/domain/shared/money"
	"ecostay/internal/domain/wallet"
)

var (
	ErrPayoutDestinationInvalid = errors.New("ledger: payout destination invalid")
	ErrIdempotencyKeyRequired   = errors.New("ledger: idempotency key required")
	ErrIdempotencyMismatch      = errors.New("ledger: idempotency key reused with different parameters")
	ErrGatewayNotConfigured     = errors.New("ledger: payment gateway not configured")
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultAttempts       = 5
	defaultBackoff        = 5 * time.Millisecond
)

var validate = validator.New()

// Service is the only writer of wallet balances. Every mutation appends one
// transaction in the same unit of work as the balance update.
type Service struct {
	UoW            uow.UoWFactory
	Gateway        policies.PaymentGateway
	Encoder        outbox.EventEncoder
	Logger         *slog.Logger
	Currency       string
	GatewayTimeout time.Duration
	Retry          uow.RetryPolicy
	Now            func() time.Time
	NewID          func() string
}

// Result is returned by Credit and Debit.
type Result struct {
	NewBalance    int64  `json:"new_balance"`
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed,omitempty"`
}

type PayoutResult struct {
	TransactionID string        `json:"transaction_id"`
	Status        wallet.Status `json:"status"`
	PayoutID      string        `json:"payout_id,omitempty"`
	Replayed      bool          `json:"replayed,omitempty"`
}

// Outcome is a gateway verdict on a payout delivered out of band.
type Outcome struct {
	Succeeded bool
	PayoutID  string
}

type WalletView struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	Held      int64     `json:"held"`
	Available int64     `json:"available"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PayoutError carries what a caller needs to retry or reconcile a payout.
type PayoutError struct {
	IdempotencyKey string
	TransactionID  string
	PayoutID       string
	Err            error
}

func (e *PayoutError) Error() string {
	msg := fmt.Sprintf("ledger: payout %s (tx %s)", e.IdempotencyKey, e.TransactionID)
	if e.PayoutID != "" {
		msg += " payout_id=" + e.PayoutID
	}
	return msg + ": " + e.Err.Error()
}

func (e *PayoutError) Unwrap() error { return e.Err }

func NewService(factory uow.UoWFactory, gateway policies.PaymentGateway, currency string, logger *slog.Logger) *Service {
	return &Service{UoW: factory, Gateway: gateway, Currency: currency, Logger: logger}
}

// Credit adds amount to the user's wallet.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, typ wallet.TransactionType, meta wallet.Metadata) (Result, error) {
	if amount <= 0 {
		return Result{}, wallet.ErrInvalidAmount
	}
	return s.mutate(ctx, userID, amount, typ, meta, func(w *wallet.Wallet, id string, now time.Time) (*wallet.Transaction, error) {
		return w.Credit(id, amount, typ, meta, now)
	})
}

// Debit removes amount when the available balance covers it. The check and
// the write commit together; a concurrent writer forces a re-read.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, typ wallet.TransactionType, meta wallet.Metadata) (Result, error) {
	if amount <= 0 {
		return Result{}, wallet.ErrInvalidAmount
	}
	return s.mutate(ctx, userID, amount, typ, meta, func(w *wallet.Wallet, id string, now time.Time) (*wallet.Transaction, error) {
		return w.Debit(id, amount, typ, meta, now)
	})
}

type mutation func(w *wallet.Wallet, id string, now time.Time) (*wallet.Transaction, error)

func (s *Service) mutate(ctx context.Context, userID string, amount int64, typ wallet.TransactionType, meta wallet.Metadata, op mutation) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, wallet.ErrUserRequired
	}
	var res Result
	err := uow.Retry(ctx, s.UoW, s.retry(), func(ctx context.Context, unit uow.UnitOfWork) error {
		res = Result{}
		if meta.IdempotencyKey != "" {
			existing, err := unit.Transactions().ByIdempotencyKey(ctx, meta.IdempotencyKey)
			if err != nil && !errors.Is(err, wallet.ErrTransactionNotFound) {
				return err
			}
			if existing != nil {
				if existing.UserID != userID || existing.Type != typ || existing.Amount != amount {
					return ErrIdempotencyMismatch
				}
				w, err := unit.Wallets().Get(ctx, userID)
				if err != nil {
					return err
				}
				res = Result{NewBalance: w.Balance, TransactionID: existing.ID, Replayed: true}
				return nil
			}
		}
		w, err := s.loadWallet(ctx, unit, userID)
		if err != nil {
			return err
		}
		tx, err := op(w, s.newID(), s.now())
		if err != nil {
			return err
		}
		if err := s.persist(ctx, unit, w, tx, true); err != nil {
			return err
		}
		res = Result{NewBalance: w.Balance, TransactionID: tx.ID}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Payout sends funds to an external account. A pending cash_out is recorded
// and the funds held before the gateway is called; the outcome then settles
// it. When the gateway cannot be reached the transaction stays pending and a
// PayoutError wrapping policies.ErrGatewayUnavailable is returned.
func (s *Service) Payout(ctx context.Context, userID string, amount int64, destinationEmail, idempotencyKey string) (PayoutResult, error) {
	if amount <= 0 {
		return PayoutResult{}, wallet.ErrInvalidAmount
	}
	if strings.TrimSpace(userID) == "" {
		return PayoutResult{}, wallet.ErrUserRequired
	}
	if idempotencyKey == "" {
		return PayoutResult{}, ErrIdempotencyKeyRequired
	}
	destinationEmail = strings.TrimSpace(destinationEmail)
	if err := validate.Var(destinationEmail, "required,email"); err != nil {
		return PayoutResult{}, ErrPayoutDestinationInvalid
	}
	if s.Gateway == nil {
		return PayoutResult{}, ErrGatewayNotConfigured
	}

	var pending *wallet.Transaction
	var replay *PayoutResult
	err := uow.Retry(ctx, s.UoW, s.retry(), func(ctx context.Context, unit uow.UnitOfWork) error {
		pending, replay = nil, nil
		existing, err := unit.Transactions().ByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, wallet.ErrTransactionNotFound) {
			return err
		}
		if existing != nil {
			if existing.UserID != userID || existing.Type != wallet.TypeCashOut || existing.Amount != amount {
				return ErrIdempotencyMismatch
			}
			if existing.Status != wallet.StatusPending {
				replay = &PayoutResult{TransactionID: existing.ID, Status: existing.Status, PayoutID: existing.GatewayReference, Replayed: true}
				return nil
			}
			pending = existing
			return nil
		}
		w, err := s.loadWallet(ctx, unit, userID)
		if err != nil {
			return err
		}
		meta := wallet.Metadata{CounterpartyEmail: destinationEmail, IdempotencyKey: idempotencyKey, Description: "payout"}
		tx, err := w.HoldPayout(s.newID(), amount, meta, s.now())
		if err != nil {
			return err
		}
		if err := s.persist(ctx, unit, w, tx, true); err != nil {
			return err
		}
		pending = tx
		return nil
	})
	if err != nil {
		return PayoutResult{}, err
	}
	if replay != nil {
		return *replay, nil
	}
	return s.drivePayout(ctx, pending)
}

// drivePayout calls the gateway for a pending cash_out and settles it.
func (s *Service) drivePayout(ctx context.Context, tx *wallet.Transaction) (PayoutResult, error) {
	logger := s.logger().With("transaction_id", tx.ID, "idempotency_key", tx.IdempotencyKey, "user_id", tx.UserID)
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	receipt, gwErr := s.Gateway.Payout(gctx, policies.PayoutRequest{
		Amount:           moneyOf(tx),
		DestinationEmail: tx.CounterpartyEmail,
		IdempotencyKey:   tx.IdempotencyKey,
	})
	cancel()

	pendingResult := PayoutResult{TransactionID: tx.ID, Status: wallet.StatusPending, PayoutID: receipt.PayoutID}
	switch {
	case gwErr == nil && receipt.Status == policies.PayoutSucceeded:
	case gwErr == nil && receipt.Status == policies.PayoutPending:
		logger.Info("payout accepted by gateway, awaiting settlement", "payout_id", receipt.PayoutID)
		return pendingResult, nil
	case errors.Is(gwErr, policies.ErrGatewayRejected), gwErr == nil && receipt.Status == policies.PayoutFailed:
		cause := gwErr
		if cause == nil {
			cause = policies.ErrGatewayRejected
		}
		// settle with a context that outlives the caller: the verdict is final
		if _, err := s.settle(context.WithoutCancel(ctx), tx.IdempotencyKey, Outcome{Succeeded: false, PayoutID: receipt.PayoutID}); err != nil {
			logger.Error("payout rejected but release failed", "error", err)
			cause = errors.Join(cause, err)
		}
		return PayoutResult{}, &PayoutError{IdempotencyKey: tx.IdempotencyKey, TransactionID: tx.ID, PayoutID: receipt.PayoutID, Err: cause}
	default:
		logger.Warn("payout outcome unknown, left pending", "error", gwErr)
		cause := gwErr
		switch {
		case cause == nil:
			cause = policies.ErrGatewayUnavailable
		case !errors.Is(cause, policies.ErrGatewayUnavailable):
			cause = fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, gwErr)
		}
		return PayoutResult{}, &PayoutError{IdempotencyKey: tx.IdempotencyKey, TransactionID: tx.ID, PayoutID: receipt.PayoutID, Err: cause}
	}

	res, err := s.settle(context.WithoutCancel(ctx), tx.IdempotencyKey, Outcome{Succeeded: true, PayoutID: receipt.PayoutID})
	if err != nil {
		// The money left; the pending record is reconciled later.
		logger.Error("payout sent but finalize failed", "payout_id", receipt.PayoutID, "error", err)
		return PayoutResult{}, &PayoutError{IdempotencyKey: tx.IdempotencyKey, TransactionID: tx.ID, PayoutID: receipt.PayoutID, Err: err}
	}
	return res, nil
}

// FinalizePayout settles a pending payout from an out-of-band gateway
// verdict. Settling an already final transaction returns it unchanged.
func (s *Service) FinalizePayout(ctx context.Context, idempotencyKey string, outcome Outcome) (PayoutResult, error) {
	if idempotencyKey == "" {
		return PayoutResult{}, ErrIdempotencyKeyRequired
	}
	return s.settle(ctx, idempotencyKey, outcome)
}

func (s *Service) settle(ctx context.Context, key string, outcome Outcome) (PayoutResult, error) {
	var res PayoutResult
	err := uow.Retry(ctx, s.UoW, s.retry(), func(ctx context.Context, unit uow.UnitOfWork) error {
		tx, err := unit.Transactions().ByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		if tx.Type != wallet.TypeCashOut {
			return wallet.ErrInvalidType
		}
		if tx.Status != wallet.StatusPending {
			res = PayoutResult{TransactionID: tx.ID, Status: tx.Status, PayoutID: tx.GatewayReference, Replayed: true}
			return nil
		}
		w, err := s.loadWallet(ctx, unit, tx.UserID)
		if err != nil {
			return err
		}
		if err := w.SettlePayout(tx, outcome.Succeeded, outcome.PayoutID, s.now()); err != nil {
			return err
		}
		if err := s.persist(ctx, unit, w, tx, false); err != nil {
			return err
		}
		res = PayoutResult{TransactionID: tx.ID, Status: tx.Status, PayoutID: tx.GatewayReference}
		return nil
	})
	if err != nil {
		return PayoutResult{}, err
	}
	return res, nil
}

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	Scanned      int `json:"scanned"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
}

// ReconcilePendingPayouts re-drives the gateway for cash_out transactions
// pending longer than olderThan. The gateway dedupes on the original key.
func (s *Service) ReconcilePendingPayouts(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	if s.Gateway == nil {
		return ReconcileReport{}, ErrGatewayNotConfigured
	}
	var pending []*wallet.Transaction
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		pending, err = unit.Transactions().ListPending(ctx, wallet.TypeCashOut, s.now().Add(-olderThan))
		return err
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	report := ReconcileReport{Scanned: len(pending)}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		res, err := s.drivePayout(ctx, tx)
		switch {
		case err == nil && res.Status == wallet.StatusCompleted:
			report.Completed++
		case errors.Is(err, policies.ErrGatewayRejected):
			report.Failed++
		default:
			report.StillPending++
		}
	}
	if report.Scanned > 0 {
		s.logger().Info("payout reconciliation finished", "scanned", report.Scanned, "completed", report.Completed, "failed", report.Failed, "pending", report.StillPending)
	}
	return report, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (WalletView, error) {
	var view WalletView
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		w, err := s.loadWallet(ctx, unit, userID)
		if err != nil {
			return err
		}
		view = WalletView{UserID: w.UserID, Balance: w.Balance, Held: w.Held, Available: w.Available(), Currency: w.Currency, UpdatedAt: w.UpdatedAt}
		return nil
	})
	return view, err
}

// History lists the user's transactions oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]*wallet.Transaction, error) {
	var txs []*wallet.Transaction
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		txs, err = unit.Transactions().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	wallet.SortChronologically(txs)
	return txs, nil
}

// VerifyInvariant replays the user's completed transactions and compares
// the result with the stored balance.
func (s *Service) VerifyInvariant(ctx context.Context, userID string) (wallet.InvariantReport, error) {
	var report wallet.InvariantReport
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		w, err := s.loadWallet(ctx, unit, userID)
		if err != nil {
			return err
		}
		txs, err := unit.Transactions().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		report = wallet.Verify(w, txs)
		return nil
	})
	if err == nil && !report.Consistent {
		s.logger().Error("wallet invariant violated", "user_id", userID, "stored", report.StoredBalance, "replayed", report.ReplayedBalance, "held", report.StoredHeld, "pending", report.PendingPayouts)
	}
	return report, err
}

func (s *Service) loadWallet(ctx context.Context, unit uow.UnitOfWork, userID string) (*wallet.Wallet, error) {
	w, err := unit.Wallets().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Currency == "" {
		w.Currency = strings.ToUpper(s.Currency)
	}
	return w, nil
}

func (s *Service) persist(ctx context.Context, unit uow.UnitOfWork, w *wallet.Wallet, tx *wallet.Transaction, insert bool) error {
	var err error
	if insert {
		err = unit.Transactions().Insert(ctx, tx)
	} else {
		err = unit.Transactions().Update(ctx, tx)
	}
	if err != nil {
		return err
	}
	if err := unit.Wallets().Save(ctx, w); err != nil {
		return err
	}
	return outbox.DrainInto(ctx, unit.Outbox(), s.Encoder, w)
}

func moneyOf(tx *wallet.Transaction) money.Money {
	return money.Money{Amount: tx.Amount, Currency: tx.Currency}
}

func (s *Service) retry() uow.RetryPolicy {
	p := s.Retry
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	return p
}

func (s *Service) gatewayTimeout() time.Duration {
	if s.GatewayTimeout <= 0 {
		return defaultGatewayTimeout
	}
	return s.GatewayTimeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
