// Package ext defines the extension system for the harness.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnSessionCompleted(ctx context.Context, res *session.Result) error {
//	    log.Printf("session %s finished %s in %s", res.ID, res.Outcome, res.Duration)
//	    return nil
//	}
//
// # Session Lifecycle Hooks
//
//   - [SessionStarted] — a worker claimed an issue and began a session
//   - [SessionCompleted] — a session finished with any outcome
//   - [SessionFailed] — a session finished with a negative outcome
//
// # Run Lifecycle Hooks
//
//   - [CheckpointCreated] — the tracker flushed a checkpoint
//   - [RedirectDetected] — the detector surfaced external work-graph changes
//   - [HarnessPaused] — the run transitioned to paused
//   - [ScaleUp] / [ScaleDown] — the pool changed size
//   - [Shutdown] — the harness is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
