package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostay/internal/app/ledger"
	domainwallet "ecostay/internal/domain/wallet"
	"ecostay/internal/infra/inbox"
)

func TestProducerPublishes(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"ok":true}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	p := NewProducerFrom(sp)

	err := p.Publish(context.Background(), "wallet.events.v1", "u1", []byte(`{"ok":true}`), map[string]string{"ce_id": "ev-1"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducerSurfacesBrokerErrors(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := NewProducerFrom(sp)

	err := p.Publish(context.Background(), "wallet.events.v1", "u1", []byte(`{}`), nil)
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestProducerHonorsContext(t *testing.T) {
	p := NewProducerFrom(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
}

type finalizeCall struct {
	key     string
	outcome ledger.Outcome
}

type fakeFinalizer struct {
	calls []finalizeCall
	err   error
}

func (f *fakeFinalizer) FinalizePayout(_ context.Context, key string, outcome ledger.Outcome) (ledger.PayoutResult, error) {
	f.calls = append(f.calls, finalizeCall{key: key, outcome: outcome})
	if f.err != nil {
		return ledger.PayoutResult{}, f.err
	}
	status := domainwallet.StatusFailed
	if outcome.Succeeded {
		status = domainwallet.StatusCompleted
	}
	return ledger.PayoutResult{TransactionID: "tx-1", Status: status, PayoutID: outcome.PayoutID}, nil
}

func payoutMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: PayoutTopic, Offset: 7, Value: []byte(value)}
}

func TestPayoutEventsFinalize(t *testing.T) {
	fin := &fakeFinalizer{}
	h := &PayoutEvents{Ledger: fin, Inbox: inbox.NewMemory()}
	ctx := context.Background()

	msg := payoutMessage(`{"id":"ev-1","type":"payout.updated","data":{"idempotency_key":"k1","payout_id":"P-1","status":"success"}}`)
	require.NoError(t, h.Handle(ctx, msg))
	require.NoError(t, h.Handle(ctx, msg))

	require.Len(t, fin.calls, 1)
	assert.Equal(t, "k1", fin.calls[0].key)
	assert.Equal(t, ledger.Outcome{Succeeded: true, PayoutID: "P-1"}, fin.calls[0].outcome)

	require.NoError(t, h.Handle(ctx, payoutMessage(`{"id":"ev-2","data":{"idempotency_key":"k2","status":"FAILED"}}`)))
	require.Len(t, fin.calls, 2)
	assert.False(t, fin.calls[1].outcome.Succeeded)
}

func TestPayoutEventsSkipsNoise(t *testing.T) {
	fin := &fakeFinalizer{}
	h := &PayoutEvents{Ledger: fin, Inbox: inbox.NewMemory()}
	ctx := context.Background()

	for _, raw := range []string{
		`not json`,
		`{"id":"","data":{"idempotency_key":"k1","status":"SUCCESS"}}`,
		`{"id":"ev-1","data":{"idempotency_key":"","status":"SUCCESS"}}`,
		`{"id":"ev-1","data":{"idempotency_key":"k1","status":"PENDING"}}`,
	} {
		assert.NoError(t, h.Handle(ctx, payoutMessage(raw)), raw)
	}
	assert.Empty(t, fin.calls)
}

func TestPayoutEventsUnknownTransaction(t *testing.T) {
	fin := &fakeFinalizer{err: domainwallet.ErrTransactionNotFound}
	h := &PayoutEvents{Ledger: fin}

	err := h.Handle(context.Background(), payoutMessage(`{"id":"ev-1","data":{"idempotency_key":"k1","status":"SUCCESS"}}`))
	assert.NoError(t, err)
}

func TestPayoutEventsFailureAllowsRedelivery(t *testing.T) {
	fin := &fakeFinalizer{err: errors.New("mongo down")}
	box := inbox.NewMemory()
	h := &PayoutEvents{Ledger: fin, Inbox: box}
	msg := payoutMessage(`{"id":"ev-1","data":{"idempotency_key":"k1","status":"SUCCESS"}}`)

	require.Error(t, h.Handle(context.Background(), msg))

	fin.err = nil
	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Len(t, fin.calls, 2)
}
