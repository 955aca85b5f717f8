package middleware

import (
	"context"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/outbox"
)

// OutboxFlush nudges the outbox after a successful command so committed
// records get published without waiting for the next poll.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
