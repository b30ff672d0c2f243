package redirect

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/harness/id"
	"github.com/xraph/harness/work"
)

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots
// ─────────────────────────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of the ready work graph. Each tick
// the previous snapshot is diffed against a fresh one and discarded.
type Snapshot struct {
	ID      id.SnapshotID        `json:"id"`
	TakenAt time.Time            `json:"taken_at"`
	Items   map[string]work.Item `json:"items"`
}

// Has reports whether the snapshot saw the given issue.
func (s *Snapshot) Has(issueID string) bool {
	_, ok := s.Items[issueID]
	return ok
}

// TakeSnapshot captures the current ready work set for a scope. The
// capture is a single read; it never locks or mutates the source.
func TakeSnapshot(ctx context.Context, source work.Source, scopeID string) (*Snapshot, error) {
	items, err := source.GetReadyWork(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:      id.NewSnapshotID(),
		TakenAt: time.Now().UTC(),
		Items:   make(map[string]work.Item, len(items)),
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		snap.Items[item.ID] = *item
	}
	return snap, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Redirects
// ─────────────────────────────────────────────────────────────────────────────

// Kind classifies a detected redirect.
type Kind string

const (
	// KindPriorityWork is a new issue more urgent than anything in flight.
	KindPriorityWork Kind = "priority_work"
	// KindPauseRequest is an external pause label on a ready issue.
	KindPauseRequest Kind = "pause_request"
	// KindCancellation is the disappearance or cancellation of an issue
	// currently assigned to a worker.
	KindCancellation Kind = "cancellation"
)

// Redirect is one externally-introduced change to the work graph.
type Redirect struct {
	Kind       Kind      `json:"kind"`
	IssueID    string    `json:"issue_id"`
	Reason     string    `json:"reason"`
	DetectedAt time.Time `json:"detected_at"`
}

// ActiveView is the coordinator's description of the work in flight,
// used to judge whether a new issue outranks it. TopPriority is the
// lowest numeric priority among assigned issues (lower is more urgent).
type ActiveView struct {
	AssignedIssues []string
	TopPriority    int
}

// CheckResult is the outcome of one detection pass.
type CheckResult struct {
	Redirects   []Redirect
	Snapshot    *Snapshot
	ShouldPause bool
	PauseReason string
}

// ─────────────────────────────────────────────────────────────────────────────
// Detector
// ─────────────────────────────────────────────────────────────────────────────

// Detector diffs work-graph snapshots. It holds no state between
// calls; the coordinator carries the previous snapshot.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a redirect detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger.With(slog.String("component", "redirect"))}
}

// Check takes a fresh snapshot and diffs it against prev. A source
// failure during capture degrades to an empty result carrying the old
// snapshot forward, so a flaky work source never stalls the loop.
func (d *Detector) Check(ctx context.Context, prev *Snapshot, source work.Source, scopeID string, active ActiveView) *CheckResult {
	snap, err := TakeSnapshot(ctx, source, scopeID)
	if err != nil {
		d.logger.Warn("snapshot capture failed, skipping redirect check",
			slog.String("scope_id", scopeID),
			slog.String("error", err.Error()))
		return &CheckResult{Snapshot: prev}
	}

	result := &CheckResult{Snapshot: snap}
	if prev == nil {
		return result
	}

	now := time.Now().UTC()
	assigned := make(map[string]struct{}, len(active.AssignedIssues))
	for _, issueID := range active.AssignedIssues {
		assigned[issueID] = struct{}{}
	}

	for issueID, item := range snap.Items {
		if item.HasLabel(work.LabelPause) {
			result.Redirects = append(result.Redirects, Redirect{
				Kind:       KindPauseRequest,
				IssueID:    issueID,
				Reason:     "external pause label on " + issueID,
				DetectedAt: now,
			})
			result.ShouldPause = true
			result.PauseReason = "external pause requested via " + issueID
			continue
		}

		if prev.Has(issueID) {
			continue
		}
		if len(assigned) > 0 && item.Priority < active.TopPriority {
			result.Redirects = append(result.Redirects, Redirect{
				Kind:       KindPriorityWork,
				IssueID:    issueID,
				Reason:     "new issue outranks work in flight",
				DetectedAt: now,
			})
		}
	}

	for issueID := range assigned {
		item, inSnap := snap.Items[issueID]
		cancelled := inSnap && item.Status == work.StatusCancelled
		vanished := !inSnap && prev.Has(issueID)
		if cancelled || vanished {
			result.Redirects = append(result.Redirects, Redirect{
				Kind:       KindCancellation,
				IssueID:    issueID,
				Reason:     "assigned issue cancelled externally",
				DetectedAt: now,
			})
		}
	}

	if len(result.Redirects) > 0 {
		d.logger.Info("redirects detected",
			slog.String("scope_id", scopeID),
			slog.Int("count", len(result.Redirects)),
			slog.Bool("should_pause", result.ShouldPause))
	}
	return result
}

// RequiresImmediateAction reports whether any redirect must force a
// checkpoint now rather than waiting for the normal cadence. Pause
// requests and cancellations always do; new priority work rides the
// normal cadence.
func RequiresImmediateAction(redirects []Redirect) bool {
	for _, r := range redirects {
		switch r.Kind {
		case KindPauseRequest, KindCancellation:
			return true
		}
	}
	return false
}
