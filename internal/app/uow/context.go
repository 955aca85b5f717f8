package uow

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Injector is implemented by units that need to carry a driver session in ctx.
type Injector interface {
	InjectContext(ctx context.Context) context.Context
}

// Run executes fn inside a fresh unit and commits it when fn succeeds. A unit
// already present in ctx is reused and left for its owner to commit.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := ctx
	if injector, ok := unit.(Injector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if opts.ReadOnly {
		committed = true
		return unit.Rollback(execCtx)
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// RetryPolicy bounds re-runs after ErrStorageConflict.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Retry runs fn in a fresh unit, re-running it against fresh state while the
// commit fails with ErrStorageConflict. The wait grows linearly with jitter.
func Retry(ctx context.Context, factory UoWFactory, policy RetryPolicy, fn func(ctx context.Context, unit UnitOfWork) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && policy.Backoff > 0 {
			wait := policy.Backoff*time.Duration(i) + rand.N(policy.Backoff)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = Run(ctx, factory, TxOptions{}, fn)
		if !errors.Is(err, ErrStorageConflict) {
			return err
		}
	}
	return err
}
