package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/ext"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.SessionStarted    = (*Extension)(nil)
	_ ext.SessionCompleted  = (*Extension)(nil)
	_ ext.SessionFailed     = (*Extension)(nil)
	_ ext.CheckpointCreated = (*Extension)(nil)
	_ ext.RedirectDetected  = (*Extension)(nil)
	_ ext.HarnessPaused     = (*Extension)(nil)
	_ ext.ScaleUp           = (*Extension)(nil)
	_ ext.ScaleDown         = (*Extension)(nil)
	_ ext.Shutdown          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package carries no dependency on any concrete
// audit store — callers inject their backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is the structured record emitted for each lifecycle hook.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges harness lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the
// [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Session lifecycle hooks ─────────────────────────

// OnSessionStarted implements ext.SessionStarted.
func (e *Extension) OnSessionStarted(ctx context.Context, workerID id.WorkerID, item *work.Item) error {
	return e.record(ctx, ActionSessionStarted, SeverityInfo, OutcomeSuccess,
		ResourceSession, item.ID, CategorySession, nil,
		"issue_title", item.Title,
		"priority", item.Priority,
		"worker_id", workerID.String(),
	)
}

// OnSessionCompleted implements ext.SessionCompleted.
func (e *Extension) OnSessionCompleted(ctx context.Context, res *session.Result) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	if !res.Outcome.Positive() {
		severity, outcome = SeverityWarning, OutcomeFailure
	}
	return e.record(ctx, ActionSessionCompleted, severity, outcome,
		ResourceSession, res.ID.String(), CategorySession, nil,
		"issue_id", res.IssueID,
		"worker_id", res.WorkerID.String(),
		"outcome", string(res.Outcome),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
}

// OnSessionFailed implements ext.SessionFailed.
func (e *Extension) OnSessionFailed(ctx context.Context, res *session.Result) error {
	var sessionErr error
	if res.Error != "" {
		sessionErr = errors.New(res.Error)
	}
	return e.record(ctx, ActionSessionFailed, SeverityCritical, OutcomeFailure,
		ResourceSession, res.ID.String(), CategorySession, sessionErr,
		"issue_id", res.IssueID,
		"worker_id", res.WorkerID.String(),
		"outcome", string(res.Outcome),
	)
}

// ── Run lifecycle hooks ─────────────────────────────

// OnCheckpointCreated implements ext.CheckpointCreated.
func (e *Extension) OnCheckpointCreated(ctx context.Context, cp *checkpoint.Checkpoint) error {
	return e.record(ctx, ActionCheckpointCreated, SeverityInfo, OutcomeSuccess,
		ResourceCheckpoint, cp.ID.String(), CategoryRun, nil,
		"harness_id", cp.HarnessID.String(),
		"reason", cp.Reason,
		"sessions", len(cp.Results),
		"confidence", cp.Confidence,
	)
}

// OnRedirectDetected implements ext.RedirectDetected.
func (e *Extension) OnRedirectDetected(ctx context.Context, redirects []redirect.Redirect) error {
	for _, r := range redirects {
		severity := SeverityInfo
		switch r.Kind {
		case redirect.KindPauseRequest, redirect.KindCancellation:
			severity = SeverityWarning
		}
		if err := e.record(ctx, ActionRedirectDetected, severity, OutcomeSuccess,
			ResourceHarness, r.IssueID, CategoryRun, nil,
			"kind", string(r.Kind),
			"reason", r.Reason,
		); err != nil {
			return err
		}
	}
	return nil
}

// OnHarnessPaused implements ext.HarnessPaused.
func (e *Extension) OnHarnessPaused(ctx context.Context, harnessID id.HarnessID, reason string) error {
	return e.record(ctx, ActionHarnessPaused, SeverityCritical, OutcomeSuccess,
		ResourceHarness, harnessID.String(), CategoryRun, nil,
		"reason", reason,
	)
}

// OnShutdown implements ext.Shutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionShutdown, SeverityInfo, OutcomeSuccess,
		ResourceHarness, "", CategoryRun, nil)
}

// ── Scale lifecycle hooks ───────────────────────────

// OnScaleUp implements ext.ScaleUp.
func (e *Extension) OnScaleUp(ctx context.Context, workers int) error {
	return e.record(ctx, ActionScaleUp, SeverityInfo, OutcomeSuccess,
		ResourcePool, "", CategoryScale, nil,
		"workers", workers,
	)
}

// OnScaleDown implements ext.ScaleDown.
func (e *Extension) OnScaleDown(ctx context.Context, workers int) error {
	return e.record(ctx, ActionScaleDown, SeverityInfo, OutcomeSuccess,
		ResourcePool, "", CategoryScale, nil,
		"workers", workers,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
