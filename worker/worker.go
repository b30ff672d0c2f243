// Package worker provides the execution slots of the harness — a Worker
// that owns the claim/execute/release lifecycle for a single issue at a
// time, and a Pool that hands out idle workers and aggregates pool-level
// metrics.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
)

// State is the worker lifecycle state.
type State string

const (
	// StateIdle means the worker holds no assignment.
	StateIdle State = "idle"
	// StateReserved means the pool has handed the worker out for claiming.
	// Reserved workers are not retirable.
	StateReserved State = "reserved"
	// StateClaimed means the worker has claimed an item but not started.
	StateClaimed State = "claimed"
	// StateExecuting means a session is in flight.
	StateExecuting State = "executing"
)

// Assignment is a worker to item binding. At most one active assignment
// exists per worker at any time.
type Assignment struct {
	WorkerID   id.WorkerID `json:"worker_id"`
	IssueID    string      `json:"issue_id"`
	AssignedAt time.Time   `json:"assigned_at"`
}

// Worker wraps one execution slot. A worker never self-initiates work;
// it is purely reactive to coordinator calls.
type Worker struct {
	id       id.WorkerID
	source   work.Source
	executor session.Executor
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	assignment *Assignment
	startedAt  time.Time
	sessions   int
}

// New creates an idle worker bound to a work source and session executor.
func New(source work.Source, executor session.Executor, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id.NewWorkerID(),
		source:   source,
		executor: executor,
		logger:   logger,
		state:    StateIdle,
	}
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() id.WorkerID { return w.id }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Sessions returns how many sessions this worker has executed.
func (w *Worker) Sessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions
}

// Assignment returns a copy of the active assignment, or nil when idle.
func (w *Worker) Assignment() *Assignment {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.assignment == nil {
		return nil
	}
	cp := *w.assignment
	return &cp
}

// SessionStartedAt returns when the in-flight session began. ok is false
// when no session is executing.
func (w *Worker) SessionStartedAt() (started time.Time, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateExecuting {
		return time.Time{}, false
	}
	return w.startedAt, true
}

// tryReserve moves an idle worker to reserved. Reset releases the
// reservation; ClaimWork consumes it.
func (w *Worker) tryReserve() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return false
	}
	w.state = StateReserved
	return true
}

// ClaimWork transitions an idle or reserved worker to claimed by marking
// the item in progress at the source. Returns false — leaving the worker
// idle — when the worker is busy or the external status mutation fails
// (for example the item was claimed elsewhere).
func (w *Worker) ClaimWork(ctx context.Context, item *work.Item) bool {
	w.mu.Lock()
	if w.state != StateIdle && w.state != StateReserved {
		w.mu.Unlock()
		return false
	}
	w.state = StateClaimed
	w.mu.Unlock()

	if err := w.source.UpdateStatus(ctx, item.ID, work.StatusInProgress); err != nil {
		w.logger.Warn("claim rejected by work source",
			slog.String("worker_id", w.id.String()),
			slog.String("issue_id", item.ID),
			slog.String("error", err.Error()),
		)
		w.Reset()
		return false
	}

	w.mu.Lock()
	w.assignment = &Assignment{
		WorkerID:   w.id,
		IssueID:    item.ID,
		AssignedAt: time.Now().UTC(),
	}
	w.mu.Unlock()

	return true
}

// Execute transitions claimed → executing, invokes the session executor,
// and always returns the worker to idle. Any executor error is converted
// into a failure result rather than propagated — a single session failure
// is never fatal to the harness.
func (w *Worker) Execute(ctx context.Context, pc *session.PrimingContext) *session.Result {
	w.mu.Lock()
	if w.state != StateClaimed || w.assignment == nil {
		w.mu.Unlock()
		return &session.Result{
			ID:       id.NewSessionID(),
			WorkerID: w.id,
			Outcome:  session.OutcomeFailure,
			Error:    "execute called without a claimed assignment",
		}
	}
	issueID := w.assignment.IssueID
	w.state = StateExecuting
	w.startedAt = time.Now().UTC()
	w.mu.Unlock()

	start := time.Now()
	res, err := w.executor.Execute(ctx, pc)
	elapsed := time.Since(start)

	if err != nil {
		w.logger.Debug("session executor returned error",
			slog.String("worker_id", w.id.String()),
			slog.String("issue_id", issueID),
			slog.String("error", err.Error()),
		)
		res = &session.Result{
			Outcome: session.OutcomeFailure,
			Error:   err.Error(),
		}
	}
	if res.ID.IsNil() {
		res.ID = id.NewSessionID()
	}
	res.WorkerID = w.id
	res.IssueID = issueID
	res.Duration = elapsed

	w.Reset()

	w.mu.Lock()
	w.sessions++
	w.mu.Unlock()

	return res
}

// Reset returns the worker to idle and clears any assignment.
func (w *Worker) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateIdle
	w.assignment = nil
	w.startedAt = time.Time{}
}
