package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "ecostay/internal/app/outbox"
	"ecostay/internal/infra/outbox"
	"ecostay/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu   sync.Mutex
	fail error
	sent []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func (p *fakeProducer) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

func addRecord(t *testing.T, box *memory.Outbox, id, name, aggregate string) {
	t.Helper()
	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"user_id":"` + aggregate + `","amount":500}`),
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Aggregate:  aggregate,
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}))
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	box := memory.NewOutbox()
	addRecord(t, box, "ev-1", "wallet.transaction_recorded", "u1")
	addRecord(t, box, "ev-2", "booking.requested", "b1")
	producer := &fakeProducer{}
	w := &outbox.Worker{Relay: box, Producer: producer, TopicPrefix: "dev.", ID: "w1"}

	require.NoError(t, w.Drain(context.Background()))

	msgs := producer.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "dev.wallet.events.v1", msgs[0].topic)
	assert.Equal(t, "u1", msgs[0].key)
	assert.Equal(t, "dev.booking.events.v1", msgs[1].topic)
	assert.Equal(t, "application/cloudevents+json", msgs[0].headers["content-type"])
	assert.Equal(t, "ev-1", msgs[0].headers["ce_id"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "wallet.transaction_recorded.v1", evt["type"])
	assert.Equal(t, "app://ecostay", evt["source"])
	assert.Equal(t, "00-abc-def-01", evt["traceparent"])
	data, ok := evt["data"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 500, data["amount"])

	// nothing left to send
	require.NoError(t, w.Drain(context.Background()))
	assert.Len(t, producer.messages(), 2)
}

func TestFailedPublishIsRetried(t *testing.T) {
	box := memory.NewOutbox()
	addRecord(t, box, "ev-1", "wallet.transaction_recorded", "u1")
	producer := &fakeProducer{fail: errors.New("broker down")}
	w := &outbox.Worker{Relay: box, Producer: producer, Backoff: []time.Duration{0}}

	require.NoError(t, w.Drain(context.Background()))
	assert.Empty(t, producer.messages())

	producer.mu.Lock()
	producer.fail = nil
	producer.mu.Unlock()

	require.NoError(t, w.Drain(context.Background()))
	assert.Len(t, producer.messages(), 1)
}

func TestBackoffDelaysRetry(t *testing.T) {
	box := memory.NewOutbox()
	addRecord(t, box, "ev-1", "wallet.transaction_recorded", "u1")
	producer := &fakeProducer{fail: errors.New("broker down")}
	w := &outbox.Worker{Relay: box, Producer: producer, Backoff: []time.Duration{time.Hour}}

	require.NoError(t, w.Drain(context.Background()))
	producer.fail = nil
	require.NoError(t, w.Drain(context.Background()))
	assert.Empty(t, producer.messages())
}

func TestRunWakesOnNotify(t *testing.T) {
	box := memory.NewOutbox()
	producer := &fakeProducer{}
	w := &outbox.Worker{Relay: box, Producer: producer, Interval: time.Hour, Wake: box.Notify()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	addRecord(t, box, "ev-1", "calendar.reserved", "lst-1")
	require.NoError(t, box.Flush(ctx))

	require.Eventually(t, func() bool { return len(producer.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "calendar.events.v1", producer.messages()[0].topic)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunNeedsDependencies(t *testing.T) {
	err := (&outbox.Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, outbox.ErrWorkerNotConfigured)
}
