// Package session defines the session executor contract and the outcome
// of one execution attempt. The executor is an opaque external capability:
// it may take arbitrarily long and offers no interrupt primitive.
package session

import (
	"context"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/work"
)

// Outcome classifies how one session ended.
type Outcome string

const (
	// OutcomeSuccess means the work item was fully completed.
	OutcomeSuccess Outcome = "success"
	// OutcomeCodeComplete means the code landed but follow-up remains.
	OutcomeCodeComplete Outcome = "code_complete"
	// OutcomeFailure means the session failed.
	OutcomeFailure Outcome = "failure"
	// OutcomePartial means some progress landed before the session ended.
	OutcomePartial Outcome = "partial"
	// OutcomeContextOverflow means the session ran out of working context.
	OutcomeContextOverflow Outcome = "context_overflow"
)

// Positive reports whether the outcome counts toward confidence.
func (o Outcome) Positive() bool {
	return o == OutcomeSuccess || o == OutcomeCodeComplete
}

// Negative reports whether the outcome counts against confidence.
func (o Outcome) Negative() bool {
	return o == OutcomeFailure || o == OutcomeContextOverflow
}

// Result is the immutable outcome of one execution attempt. It is produced
// by the executor (or synthesized on executor error) and folded exactly
// once into checkpoint tracking and scale metrics.
type Result struct {
	harness.Entity

	ID        id.SessionID  `json:"id"`
	HarnessID id.HarnessID  `json:"harness_id"`
	IssueID   string        `json:"issue_id"`
	WorkerID  id.WorkerID   `json:"worker_id"`
	Outcome   Outcome       `json:"outcome"`
	Summary   string        `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// PrimingContext bundles everything an executor needs for one session:
// the target item, recent history, the last checkpoint reference,
// accumulated redirect notes, and a session goal.
type PrimingContext struct {
	Item             *work.Item      `json:"item"`
	History          []*Result       `json:"history,omitempty"`
	LastCheckpointID id.CheckpointID `json:"last_checkpoint_id,omitempty"`
	RedirectNotes    []string        `json:"redirect_notes,omitempty"`
	Goal             string          `json:"goal"`

	// Timeout is the advisory session deadline applied by middleware.
	// Executors that honor context cancellation will observe it; the
	// contract does not require them to.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Executor performs one unit of work given a primed context. Execute may
// block for a long time and is not cancellable; a stalled session is
// reported by the scale manager, never forcibly terminated.
type Executor interface {
	Execute(ctx context.Context, pc *PrimingContext) (*Result, error)
}

// ResultStore persists session results so checkpoint aggregation survives
// coordinator restarts. Saves are idempotent by result ID.
type ResultStore interface {
	SaveResult(ctx context.Context, r *Result) error
	ListResults(ctx context.Context, harnessID id.HarnessID, limit int) ([]*Result, error)
}
