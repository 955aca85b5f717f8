package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostay/internal/app/ledger"
)

type fakeReconciler struct {
	mu    sync.Mutex
	ages  []time.Duration
	err   error
	block chan struct{}
}

func (f *fakeReconciler) ReconcilePendingPayouts(ctx context.Context, olderThan time.Duration) (ledger.ReconcileReport, error) {
	f.mu.Lock()
	f.ages = append(f.ages, olderThan)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ledger.ReconcileReport{}, ctx.Err()
		}
	}
	return ledger.ReconcileReport{Scanned: 1}, f.err
}

func (f *fakeReconciler) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ages)
}

func TestNewDefaultsAndSpec(t *testing.T) {
	_, err := New(&fakeReconciler{}, Config{ReconcileSpec: "not a cron"}, nil)
	require.Error(t, err)

	s, err := New(&fakeReconciler{}, Config{ReconcileSpec: "0 */5 * * * *"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, s.cfg.PendingAge)
	assert.Equal(t, time.Minute, s.cfg.RunTimeout)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestReconcileOncePassesPendingAge(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("gateway down")}
	s, err := New(rec, Config{ReconcileSpec: "@every 1h", PendingAge: 90 * time.Second}, nil)
	require.NoError(t, err)

	s.ReconcileOnce()
	s.ReconcileOnce()
	assert.Equal(t, []time.Duration{90 * time.Second, 90 * time.Second}, rec.ages)
}

func TestCronRunsSweeps(t *testing.T) {
	rec := &fakeReconciler{}
	s, err := New(rec, Config{ReconcileSpec: "* * * * * *"}, nil)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return rec.runs() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
}

func TestStopCancelsRunningSweep(t *testing.T) {
	rec := &fakeReconciler{block: make(chan struct{})}
	s, err := New(rec, Config{ReconcileSpec: "@every 1h", RunTimeout: time.Hour}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.ReconcileOnce()
		close(done)
	}()
	require.Eventually(t, func() bool { return rec.runs() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not observe cancellation")
	}
}
