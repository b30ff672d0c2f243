// Package coordinator implements the top-level control loop of the
// harness. The Coordinator owns HarnessState, composes the worker pool,
// scale manager, checkpoint tracker, redirect detector, and optional
// convoy queue, and is the only component that mutates externally-visible
// issue status.
//
// Each tick the loop folds finished sessions, diffs the work graph for
// redirects, applies the confidence gate and checkpoint cadence, polls
// the source for ready work, honors backpressure, and dispatches one
// session per available worker. Sessions run concurrently; the loop joins
// on the first completion before the next scheduling decision. A single
// session failure is never fatal — only a priming-context failure ends
// the run as failed.
package coordinator
