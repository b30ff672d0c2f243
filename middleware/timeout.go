package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/harness/session"
)

// Timeout returns middleware that applies the priming context's advisory
// session deadline. If the priming context carries a non-zero Timeout, a
// context.WithTimeout wraps the executor call. Executors that honor
// context cancellation will observe the deadline; the executor contract
// does not require them to, so this bounds cooperative executors only.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, pc *session.PrimingContext, next Handler) (*session.Result, error) {
		if pc.Timeout > 0 {
			logger.Debug("session timeout set",
				slog.String("issue_id", pc.Item.ID),
				slog.Duration("timeout", pc.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, pc.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
