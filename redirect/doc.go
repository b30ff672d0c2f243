// Package redirect detects out-of-band changes to the external work
// graph by diffing successive point-in-time snapshots.
//
// The detector is read-only against the work source and tolerant of
// stale snapshots. A redirect is any delta the coordinator did not
// cause itself: a new issue more urgent than the work in flight, an
// external pause label, or the cancellation of an issue currently
// assigned to a worker. Snapshot capture failures degrade to "no
// redirects this tick" rather than blocking the control loop.
package redirect
