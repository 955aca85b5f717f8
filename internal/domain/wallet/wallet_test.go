package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCreditAndDebit(t *testing.T) {
	w := New("u1", "usd")
	require.Equal(t, "USD", w.Currency)

	tx, err := w.Credit("t1", 5000, TypeCashIn, Metadata{Description: "top up"}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, tx.Status)
	assert.EqualValues(t, 5000, tx.BalanceAfter)
	assert.EqualValues(t, 1, tx.Sequence)

	tx, err = w.Debit("t2", 2000, TypePayment, Metadata{RelatedBookingID: "b1"}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3000, tx.BalanceAfter)
	assert.Equal(t, "b1", tx.RelatedBookingID)
	assert.EqualValues(t, 3000, w.Balance)
	assert.EqualValues(t, 2, w.Sequence)
	assert.Len(t, w.PendingEvents(), 2)
}

func TestDebitRejectsOverdraft(t *testing.T) {
	w := New("u1", "USD")
	_, err := w.Credit("t1", 1000, TypeCashIn, Metadata{}, now)
	require.NoError(t, err)

	_, err = w.Debit("t2", 1001, TypePayment, Metadata{}, now)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.EqualValues(t, 1000, w.Balance)
	assert.EqualValues(t, 1, w.Sequence)
}

func TestMutationGuards(t *testing.T) {
	w := New("u1", "USD")
	_, err := w.Credit("t1", 0, TypeCashIn, Metadata{}, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = w.Credit("t1", 10, TypePayment, Metadata{}, now)
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = w.Debit("t1", 10, TypeRefund, Metadata{}, now)
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = w.HoldPayout("t1", -5, Metadata{}, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPayoutHoldAndSettle(t *testing.T) {
	w := New("u1", "USD")
	_, err := w.Credit("t1", 10000, TypeCashIn, Metadata{}, now)
	require.NoError(t, err)

	tx, err := w.HoldPayout("t2", 4000, Metadata{IdempotencyKey: "k1", CounterpartyEmail: "a@b.c"}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
	assert.EqualValues(t, 6000, tx.BalanceAfter)
	assert.EqualValues(t, 10000, w.Balance)
	assert.EqualValues(t, 4000, w.Held)
	assert.EqualValues(t, 6000, w.Available())

	// held funds cannot be spent twice
	_, err = w.Debit("t3", 7000, TypePayment, Metadata{}, now)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	w.ClearEvents()
	require.NoError(t, w.SettlePayout(tx, true, "PAY-1", now.Add(time.Minute)))
	assert.Equal(t, StatusCompleted, tx.Status)
	assert.Equal(t, "PAY-1", tx.GatewayReference)
	assert.EqualValues(t, 6000, w.Balance)
	assert.Zero(t, w.Held)

	evs := w.PendingEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, "wallet.transaction_settled", evs[0].EventName())

	assert.ErrorIs(t, w.SettlePayout(tx, false, "", now), ErrInvalidTransition)
}

func TestFailedPayoutReleasesHold(t *testing.T) {
	w := New("u1", "USD")
	_, err := w.Credit("t1", 3000, TypeCashIn, Metadata{}, now)
	require.NoError(t, err)
	tx, err := w.HoldPayout("t2", 3000, Metadata{}, now)
	require.NoError(t, err)

	require.NoError(t, w.SettlePayout(tx, false, "", now))
	assert.Equal(t, StatusFailed, tx.Status)
	assert.EqualValues(t, 3000, w.Balance)
	assert.EqualValues(t, 3000, tx.BalanceAfter)
	assert.EqualValues(t, 3000, w.Available())
}

func TestSettleRejectsNonPayout(t *testing.T) {
	w := New("u1", "USD")
	tx, err := w.Credit("t1", 100, TypeCashIn, Metadata{}, now)
	require.NoError(t, err)
	assert.ErrorIs(t, w.SettlePayout(tx, true, "", now), ErrInvalidTransition)
}

func TestCloneDropsEvents(t *testing.T) {
	w := New("u1", "USD")
	_, err := w.Credit("t1", 100, TypeCashIn, Metadata{}, now)
	require.NoError(t, err)

	c := w.Clone()
	assert.Equal(t, w.Balance, c.Balance)
	assert.Empty(t, c.PendingEvents())
	c.Balance = 0
	assert.EqualValues(t, 100, w.Balance)
}

func TestVerify(t *testing.T) {
	w := New("u1", "USD")
	var txs []*Transaction
	record := func(tx *Transaction, err error) *Transaction {
		require.NoError(t, err)
		txs = append(txs, tx)
		return tx
	}
	record(w.Credit("t1", 10000, TypeCashIn, Metadata{}, now))
	record(w.Debit("t2", 2500, TypePayment, Metadata{}, now))
	record(w.Credit("t3", 500, TypeRefund, Metadata{}, now))
	pending := record(w.HoldPayout("t4", 1000, Metadata{}, now))
	failed := record(w.HoldPayout("t5", 2000, Metadata{}, now))
	require.NoError(t, w.SettlePayout(failed, false, "", now))

	report := Verify(w, txs)
	assert.True(t, report.Consistent)
	assert.EqualValues(t, 8000, report.ReplayedBalance)
	assert.EqualValues(t, 1000, report.PendingPayouts)
	assert.Equal(t, 5, report.Transactions)

	require.NoError(t, w.SettlePayout(pending, true, "", now))
	assert.True(t, Verify(w, txs).Consistent)

	w.Balance += 1
	report = Verify(w, txs)
	assert.False(t, report.Consistent)
	assert.EqualValues(t, 7000, report.ReplayedBalance)
}

func TestSortChronologicallyBreaksTiesBySequence(t *testing.T) {
	later := now.Add(time.Second)
	txs := []*Transaction{
		{ID: "c", CreatedAt: later, Sequence: 3},
		{ID: "b", CreatedAt: now, Sequence: 2},
		{ID: "a", CreatedAt: now, Sequence: 1},
	}
	SortChronologically(txs)
	assert.Equal(t, []string{"a", "b", "c"}, []string{txs[0].ID, txs[1].ID, txs[2].ID})
}

func TestTransactionTypes(t *testing.T) {
	for _, typ := range []TransactionType{TypeCashIn, TypePaymentReceived, TypeRefund} {
		assert.True(t, typ.IsCredit(), typ)
		assert.False(t, typ.IsDebit(), typ)
	}
	for _, typ := range []TransactionType{TypeCashOut, TypePayment} {
		assert.True(t, typ.IsDebit(), typ)
	}
	assert.False(t, TransactionType("gift").Valid())
	assert.EqualValues(t, -50, (&Transaction{Type: TypePayment, Amount: 50}).SignedAmount())
}
