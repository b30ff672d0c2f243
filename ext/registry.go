package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type sessionStartedEntry struct {
	name string
	hook SessionStarted
}

type sessionCompletedEntry struct {
	name string
	hook SessionCompleted
}

type sessionFailedEntry struct {
	name string
	hook SessionFailed
}

type checkpointCreatedEntry struct {
	name string
	hook CheckpointCreated
}

type redirectDetectedEntry struct {
	name string
	hook RedirectDetected
}

type harnessPausedEntry struct {
	name string
	hook HarnessPaused
}

type scaleUpEntry struct {
	name string
	hook ScaleUp
}

type scaleDownEntry struct {
	name string
	hook ScaleDown
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	sessionStarted    []sessionStartedEntry
	sessionCompleted  []sessionCompletedEntry
	sessionFailed     []sessionFailedEntry
	checkpointCreated []checkpointCreatedEntry
	redirectDetected  []redirectDetectedEntry
	harnessPaused     []harnessPausedEntry
	scaleUp           []scaleUpEntry
	scaleDown         []scaleDownEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(SessionStarted); ok {
		r.sessionStarted = append(r.sessionStarted, sessionStartedEntry{name, h})
	}
	if h, ok := e.(SessionCompleted); ok {
		r.sessionCompleted = append(r.sessionCompleted, sessionCompletedEntry{name, h})
	}
	if h, ok := e.(SessionFailed); ok {
		r.sessionFailed = append(r.sessionFailed, sessionFailedEntry{name, h})
	}
	if h, ok := e.(CheckpointCreated); ok {
		r.checkpointCreated = append(r.checkpointCreated, checkpointCreatedEntry{name, h})
	}
	if h, ok := e.(RedirectDetected); ok {
		r.redirectDetected = append(r.redirectDetected, redirectDetectedEntry{name, h})
	}
	if h, ok := e.(HarnessPaused); ok {
		r.harnessPaused = append(r.harnessPaused, harnessPausedEntry{name, h})
	}
	if h, ok := e.(ScaleUp); ok {
		r.scaleUp = append(r.scaleUp, scaleUpEntry{name, h})
	}
	if h, ok := e.(ScaleDown); ok {
		r.scaleDown = append(r.scaleDown, scaleDownEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Session event emitters
// ──────────────────────────────────────────────────

// EmitSessionStarted notifies all extensions that implement SessionStarted.
func (r *Registry) EmitSessionStarted(ctx context.Context, workerID id.WorkerID, item *work.Item) {
	for _, e := range r.sessionStarted {
		if err := e.hook.OnSessionStarted(ctx, workerID, item); err != nil {
			r.logHookError("OnSessionStarted", e.name, err)
		}
	}
}

// EmitSessionCompleted notifies all extensions that implement
// SessionCompleted, then EmitSessionFailed when the outcome is negative.
func (r *Registry) EmitSessionCompleted(ctx context.Context, res *session.Result) {
	for _, e := range r.sessionCompleted {
		if err := e.hook.OnSessionCompleted(ctx, res); err != nil {
			r.logHookError("OnSessionCompleted", e.name, err)
		}
	}
	if res.Outcome.Negative() {
		for _, e := range r.sessionFailed {
			if err := e.hook.OnSessionFailed(ctx, res); err != nil {
				r.logHookError("OnSessionFailed", e.name, err)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Run event emitters
// ──────────────────────────────────────────────────

// EmitCheckpointCreated notifies all extensions that implement CheckpointCreated.
func (r *Registry) EmitCheckpointCreated(ctx context.Context, cp *checkpoint.Checkpoint) {
	for _, e := range r.checkpointCreated {
		if err := e.hook.OnCheckpointCreated(ctx, cp); err != nil {
			r.logHookError("OnCheckpointCreated", e.name, err)
		}
	}
}

// EmitRedirectDetected notifies all extensions that implement RedirectDetected.
func (r *Registry) EmitRedirectDetected(ctx context.Context, redirects []redirect.Redirect) {
	for _, e := range r.redirectDetected {
		if err := e.hook.OnRedirectDetected(ctx, redirects); err != nil {
			r.logHookError("OnRedirectDetected", e.name, err)
		}
	}
}

// EmitHarnessPaused notifies all extensions that implement HarnessPaused.
func (r *Registry) EmitHarnessPaused(ctx context.Context, harnessID id.HarnessID, reason string) {
	for _, e := range r.harnessPaused {
		if err := e.hook.OnHarnessPaused(ctx, harnessID, reason); err != nil {
			r.logHookError("OnHarnessPaused", e.name, err)
		}
	}
}

// EmitScaleUp notifies all extensions that implement ScaleUp.
func (r *Registry) EmitScaleUp(ctx context.Context, workers int) {
	for _, e := range r.scaleUp {
		if err := e.hook.OnScaleUp(ctx, workers); err != nil {
			r.logHookError("OnScaleUp", e.name, err)
		}
	}
}

// EmitScaleDown notifies all extensions that implement ScaleDown.
func (r *Registry) EmitScaleDown(ctx context.Context, workers int) {
	for _, e := range r.scaleDown {
		if err := e.hook.OnScaleDown(ctx, workers); err != nil {
			r.logHookError("OnScaleDown", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the loop.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
