// Package middleware provides composable middleware for session execution.
//
// A [Middleware] is a function that wraps the session executor. Middleware
// are composed into a chain using [Chain] and applied before each session
// executes. They are applied right-to-left: the first middleware in the
// slice is the outermost wrapper.
//
//	// logging → recover → executor
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs issue, duration, and outcome at each session
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the session context after the priming deadline
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-session duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, pc *session.PrimingContext, next middleware.Handler) (*session.Result, error) {
//	        // pre-processing
//	        res, err := next(ctx)
//	        // post-processing
//	        return res, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
