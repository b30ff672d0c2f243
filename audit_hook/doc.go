// Package audithook is a harness extension that bridges lifecycle
// events to an immutable audit trail backend.
//
// Every session, checkpoint, redirect, and scale lifecycle hook emits a
// structured audit event through the [Recorder] interface. The
// extension assigns appropriate severity levels (info for normal
// operations, warning for failed sessions and redirects, critical for
// pauses) and rich metadata (issue id, worker id, outcome, elapsed
// time).
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionSessionFailed,
//	        audithook.ActionHarnessPaused,
//	    ),
//	)
package audithook
