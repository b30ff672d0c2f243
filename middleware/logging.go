package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/harness/session"
)

// Logging returns middleware that logs session start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, pc *session.PrimingContext, next Handler) (*session.Result, error) {
		logger.Info("session started",
			slog.String("issue_id", pc.Item.ID),
			slog.String("goal", pc.Goal),
			slog.Int("priority", pc.Item.Priority),
		)

		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Error("session failed",
				slog.String("issue_id", pc.Item.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case res != nil:
			logger.Info("session completed",
				slog.String("issue_id", pc.Item.ID),
				slog.String("outcome", string(res.Outcome)),
				slog.Duration("elapsed", elapsed),
			)
		}

		return res, err
	}
}
