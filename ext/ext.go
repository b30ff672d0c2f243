package ext

import (
	"context"

	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Session lifecycle hooks
// ──────────────────────────────────────────────────

// SessionStarted is called when a worker claims an issue and begins a
// session.
type SessionStarted interface {
	OnSessionStarted(ctx context.Context, workerID id.WorkerID, item *work.Item) error
}

// SessionCompleted is called after a session finishes, whatever the
// outcome.
type SessionCompleted interface {
	OnSessionCompleted(ctx context.Context, res *session.Result) error
}

// SessionFailed is called after a session with a negative outcome, in
// addition to SessionCompleted.
type SessionFailed interface {
	OnSessionFailed(ctx context.Context, res *session.Result) error
}

// ──────────────────────────────────────────────────
// Run lifecycle hooks
// ──────────────────────────────────────────────────

// CheckpointCreated is called after the tracker flushes a checkpoint.
type CheckpointCreated interface {
	OnCheckpointCreated(ctx context.Context, cp *checkpoint.Checkpoint) error
}

// RedirectDetected is called when the detector surfaces external
// changes to the work graph.
type RedirectDetected interface {
	OnRedirectDetected(ctx context.Context, redirects []redirect.Redirect) error
}

// HarnessPaused is called when the run transitions to paused.
type HarnessPaused interface {
	OnHarnessPaused(ctx context.Context, harnessID id.HarnessID, reason string) error
}

// ScaleUp is called after the pool grows by one worker.
type ScaleUp interface {
	OnScaleUp(ctx context.Context, workers int) error
}

// ScaleDown is called after the pool shrinks by one worker.
type ScaleDown interface {
	OnScaleDown(ctx context.Context, workers int) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
