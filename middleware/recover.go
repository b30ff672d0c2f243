package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/harness/session"
)

// Recover returns middleware that recovers from panics in the executor chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, pc *session.PrimingContext, next Handler) (res *session.Result, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("session executor panicked",
					slog.String("issue_id", pc.Item.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				res = nil
				retErr = fmt.Errorf("panic in session for %s: %v", pc.Item.ID, r)
			}
		}()
		return next(ctx)
	}
}
