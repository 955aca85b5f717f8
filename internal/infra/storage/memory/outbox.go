package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "ecostay/internal/app/outbox"
)

type outboxState string

const (
	outboxNew     outboxState = "NEW"
	outboxClaimed outboxState = "CLAIMED"
	outboxSent    outboxState = "SENT"
	outboxFailed  outboxState = "FAILED"
)

type outboxRow struct {
	record    appoutbox.EventRecord
	state     outboxState
	attempts  int
	nextAt    time.Time
	claimedBy string
	lastError string
}

// Outbox keeps committed event records and relays them to a publisher.
type Outbox struct {
	mu     sync.Mutex
	rows   []*outboxRow
	notify chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	now := time.Now().UTC()
	for _, rec := range records {
		o.rows = append(o.rows, &outboxRow{record: rec, state: outboxNew, nextAt: now})
	}
	o.mu.Unlock()
}

// Add stores a record outside any unit of work.
func (o *Outbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	o.append(record)
	return nil
}

// Flush wakes a waiting relay.
func (o *Outbox) Flush(context.Context) error {
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// Notify fires after Flush.
func (o *Outbox) Notify() <-chan struct{} {
	return o.notify
}

func (o *Outbox) Claim(_ context.Context, workerID string) (*appoutbox.Claimed, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range o.rows {
		if (row.state == outboxNew || row.state == outboxFailed) && !row.nextAt.After(now) {
			row.state = outboxClaimed
			row.claimedBy = workerID
			return &appoutbox.Claimed{EventRecord: row.record, Attempts: row.attempts}, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if row := o.find(id); row != nil {
		row.state = outboxSent
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if row := o.find(id); row != nil {
		row.state = outboxFailed
		row.nextAt = next
		row.lastError = errMsg
		row.attempts++
	}
	return nil
}

// Records returns every committed record in commit order.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.rows))
	for _, row := range o.rows {
		out = append(out, row.record)
	}
	return out
}

// Names lists committed event names in order.
func (o *Outbox) Names() []string {
	recs := o.Records()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func (o *Outbox) find(id string) *outboxRow {
	for _, row := range o.rows {
		if row.record.ID == id {
			return row
		}
	}
	return nil
}

var _ appoutbox.Relay = (*Outbox)(nil)
