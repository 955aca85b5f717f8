package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostay/internal/app/ledger"
	"ecostay/internal/app/policies"
	"ecostay/internal/app/uow"
	"ecostay/internal/domain/wallet"
	"ecostay/internal/infra/payments"
	"ecostay/internal/infra/storage/memory"
)

type fixture struct {
	store   *memory.Store
	sandbox *payments.Sandbox
	svc     *ledger.Service
	clock   *atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	sandbox := payments.NewSandbox()
	clock := &atomic.Int64{}
	clock.Store(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).UnixNano())

	svc := ledger.NewService(memory.Factory{Store: store}, sandbox, "USD", nil)
	svc.Retry = uow.RetryPolicy{Attempts: 100, Backoff: time.Millisecond}
	svc.GatewayTimeout = 50 * time.Millisecond
	svc.Now = func() time.Time { return time.Unix(0, clock.Load()).UTC() }
	return &fixture{store: store, sandbox: sandbox, svc: svc, clock: clock}
}

func (f *fixture) advance(d time.Duration) {
	f.clock.Add(int64(d))
}

func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.svc.Credit(context.Background(), userID, amount, wallet.TypeCashIn, wallet.Metadata{})
	require.NoError(t, err)
}

func (f *fixture) assertConsistent(t *testing.T, userID string) wallet.InvariantReport {
	t.Helper()
	report, err := f.svc.VerifyInvariant(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "%+v", report)
	return report
}

func TestCreditDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Credit(ctx, "u1", 5000, wallet.TypeCashIn, wallet.Metadata{})
	require.NoError(t, err)
	assert.EqualValues(t, 5000, res.NewBalance)

	res, err = f.svc.Debit(ctx, "u1", 1500, wallet.TypePayment, wallet.Metadata{RelatedBookingID: "b1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3500, res.NewBalance)

	view, err := f.svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3500, view.Available)
	assert.Equal(t, "USD", view.Currency)

	history, err := f.svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, wallet.TypeCashIn, history[0].Type)
	assert.Equal(t, "b1", history[1].RelatedBookingID)

	assert.Contains(t, f.store.Outbox().Names(), "wallet.transaction_recorded")
	f.assertConsistent(t, "u1")
}

func TestDebitNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 1000)

	_, err := f.svc.Debit(context.Background(), "u1", 1001, wallet.TypePayment, wallet.Metadata{})
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	history, err := f.svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Credit(ctx, "u1", 0, wallet.TypeCashIn, wallet.Metadata{})
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	_, err = f.svc.Credit(ctx, " ", 10, wallet.TypeCashIn, wallet.Metadata{})
	assert.ErrorIs(t, err, wallet.ErrUserRequired)
	_, err = f.svc.Payout(ctx, "u1", 10, "not-an-email", "k1")
	assert.ErrorIs(t, err, ledger.ErrPayoutDestinationInvalid)
	_, err = f.svc.Payout(ctx, "u1", 10, "a@example.com", "")
	assert.ErrorIs(t, err, ledger.ErrIdempotencyKeyRequired)
}

func TestConcurrentDebitsRespectBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Debit(context.Background(), "u1", 1000, wallet.TypePayment, wallet.Metadata{})
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, wallet.ErrInsufficientBalance):
				insufficient.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, ok.Load())
	assert.EqualValues(t, 5, insufficient.Load())
	report := f.assertConsistent(t, "u1")
	assert.Zero(t, report.StoredBalance)
}

func TestCreditIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := wallet.Metadata{IdempotencyKey: "cash-in-1"}

	first, err := f.svc.Credit(ctx, "u1", 700, wallet.TypeCashIn, meta)
	require.NoError(t, err)
	again, err := f.svc.Credit(ctx, "u1", 700, wallet.TypeCashIn, meta)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.TransactionID, again.TransactionID)
	assert.EqualValues(t, 700, again.NewBalance)

	_, err = f.svc.Credit(ctx, "u1", 800, wallet.TypeCashIn, meta)
	assert.ErrorIs(t, err, ledger.ErrIdempotencyMismatch)
}

func TestPayoutSucceeds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 10000)
	ctx := context.Background()

	res, err := f.svc.Payout(ctx, "u1", 4000, "host@example.com", "payout-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.PayoutID)

	again, err := f.svc.Payout(ctx, "u1", 4000, "host@example.com", "payout-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.TransactionID, again.TransactionID)
	assert.Equal(t, 1, f.sandbox.PayoutCalls("payout-1"))

	_, err = f.svc.Payout(ctx, "u1", 5000, "host@example.com", "payout-1")
	assert.ErrorIs(t, err, ledger.ErrIdempotencyMismatch)

	report := f.assertConsistent(t, "u1")
	assert.EqualValues(t, 6000, report.StoredBalance)
	assert.Zero(t, report.StoredHeld)
}

func TestPayoutInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 100)

	_, err := f.svc.Payout(context.Background(), "u1", 101, "host@example.com", "payout-1")
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	assert.Zero(t, f.sandbox.PayoutCalls("payout-1"))
}

func TestPayoutRejectedReleasesFunds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 3000)
	f.sandbox.SetPayoutBehavior(payments.PayoutReject)
	ctx := context.Background()

	_, err := f.svc.Payout(ctx, "u1", 3000, "host@example.com", "payout-1")
	require.ErrorIs(t, err, policies.ErrGatewayRejected)
	var perr *ledger.PayoutError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "payout-1", perr.IdempotencyKey)
	assert.NotEmpty(t, perr.TransactionID)

	view, err := f.svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3000, view.Available)

	replay, err := f.svc.Payout(ctx, "u1", 3000, "host@example.com", "payout-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusFailed, replay.Status)
	assert.True(t, replay.Replayed)
	f.assertConsistent(t, "u1")
}

func TestPayoutTimeoutStaysPendingUntilReconciled(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)
	f.sandbox.SetPayoutBehavior(payments.PayoutHang)
	ctx := context.Background()

	_, err := f.svc.Payout(ctx, "u1", 2000, "host@example.com", "payout-1")
	require.ErrorIs(t, err, policies.ErrGatewayUnavailable)

	view, err := f.svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 5000, view.Balance)
	assert.EqualValues(t, 2000, view.Held)
	assert.EqualValues(t, 3000, view.Available)
	f.assertConsistent(t, "u1")

	// too young to reconcile
	report, err := f.svc.ReconcilePendingPayouts(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)

	f.sandbox.SetPayoutBehavior(payments.PayoutSucceed)
	f.advance(10 * time.Minute)
	report, err = f.svc.ReconcilePendingPayouts(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReconcileReport{Scanned: 1, Completed: 1}, report)
	assert.Equal(t, 2, f.sandbox.PayoutCalls("payout-1"))

	final := f.assertConsistent(t, "u1")
	assert.EqualValues(t, 3000, final.StoredBalance)
	assert.Zero(t, final.StoredHeld)
}

func TestPayoutRetryResumesPending(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)
	f.sandbox.SetPayoutBehavior(payments.PayoutUnavailable)
	ctx := context.Background()

	_, err := f.svc.Payout(ctx, "u1", 1000, "host@example.com", "payout-1")
	require.ErrorIs(t, err, policies.ErrGatewayUnavailable)

	f.sandbox.SetPayoutBehavior(payments.PayoutSucceed)
	res, err := f.svc.Payout(ctx, "u1", 1000, "host@example.com", "payout-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusCompleted, res.Status)

	history, err := f.svc.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestFinalizeAcceptedPayout(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)
	f.sandbox.SetPayoutBehavior(payments.PayoutAccept)
	ctx := context.Background()

	res, err := f.svc.Payout(ctx, "u1", 1000, "host@example.com", "payout-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, res.Status)

	settled, err := f.svc.FinalizePayout(ctx, "payout-1", ledger.Outcome{Succeeded: false, PayoutID: res.PayoutID})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusFailed, settled.Status)

	// a late contradicting verdict does not reopen it
	again, err := f.svc.FinalizePayout(ctx, "payout-1", ledger.Outcome{Succeeded: true})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, wallet.StatusFailed, again.Status)

	_, err = f.svc.FinalizePayout(ctx, "unknown", ledger.Outcome{Succeeded: true})
	assert.ErrorIs(t, err, wallet.ErrTransactionNotFound)

	report := f.assertConsistent(t, "u1")
	assert.EqualValues(t, 5000, report.StoredBalance)
}

func TestFinalizeRejectsNonPayout(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Credit(context.Background(), "u1", 100, wallet.TypeCashIn, wallet.Metadata{IdempotencyKey: "k"})
	require.NoError(t, err)

	_, err = f.svc.FinalizePayout(context.Background(), "k", ledger.Outcome{Succeeded: true})
	assert.ErrorIs(t, err, wallet.ErrInvalidType)
}

func TestPayoutWithoutGateway(t *testing.T) {
	f := newFixture(t)
	f.svc.Gateway = nil
	_, err := f.svc.Payout(context.Background(), "u1", 10, "a@example.com", "k")
	assert.ErrorIs(t, err, ledger.ErrGatewayNotConfigured)
	_, err = f.svc.ReconcilePendingPayouts(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ledger.ErrGatewayNotConfigured)
}
