package middleware

import (
	"context"

	"github.com/xraph/harness/session"
)

// Handler is the terminal function that executes the session.
type Handler func(ctx context.Context) (*session.Result, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the priming context of the session
// being executed, and the next handler to call. Middleware MUST call
// next to continue the chain (unless short-circuiting on error).
type Middleware func(ctx context.Context, pc *session.PrimingContext, next Handler) (*session.Result, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → executor
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, pc *session.PrimingContext, next Handler) (*session.Result, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (*session.Result, error) {
				return mw(ctx, pc, prev)
			}
		}
		return h(ctx)
	}
}

// wrapped adapts a middleware chain back into a session.Executor.
type wrapped struct {
	exec  session.Executor
	chain Middleware
}

func (w *wrapped) Execute(ctx context.Context, pc *session.PrimingContext) (*session.Result, error) {
	return w.chain(ctx, pc, func(ctx context.Context) (*session.Result, error) {
		return w.exec.Execute(ctx, pc)
	})
}

// Apply wraps an executor with the given middleware. The first
// middleware is the outermost wrapper.
func Apply(exec session.Executor, mws ...Middleware) session.Executor {
	if len(mws) == 0 {
		return exec
	}
	return &wrapped{exec: exec, chain: Chain(mws...)}
}
