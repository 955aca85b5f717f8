package middleware

import (
	"context"
	"errors"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// UnitManager marks commands whose handlers open and commit their own units,
// typically because they call external systems between commits.
type UnitManager interface {
	ManagesUnits()
}

// Transaction runs the command inside one unit of work. Optimistic conflicts
// re-run the whole handler up to attempts times against fresh state.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, attempts int) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	if attempts < 1 {
		attempts = 1
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, ok := cmd.(UnitManager); ok {
				return next.Dispatch(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var res any
			var err error
			for i := 0; i < attempts; i++ {
				err = uow.Run(ctx, factory, opts, func(execCtx context.Context, _ uow.UnitOfWork) error {
					var runErr error
					res, runErr = next.Dispatch(execCtx, cmd)
					return runErr
				})
				if !errors.Is(err, uow.ErrStorageConflict) {
					break
				}
			}
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
