package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/observer"
	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
	"github.com/xraph/harness/worker"
)

// Run starts a fresh run (or continues a state installed by Resume) and
// blocks until the harness completes, pauses, fails, or ctx is cancelled.
// Pause and completion are clean exits; only a priming failure or a
// cancelled context returns an error.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.state == nil {
		c.state = harness.NewState(c.mode, c.policy)
	}
	if c.state.FeaturesTotal == 0 {
		// Size the run up front so progress is legible in persisted state.
		if items, err := c.source.GetReadyWork(ctx, c.scopeID); err == nil {
			c.state.FeaturesTotal = len(items)
		} else {
			c.logger.Warn("initial work count unavailable", slog.String("error", err.Error()))
		}
	}
	if err := c.store.SaveState(ctx, c.state); err != nil {
		return fmt.Errorf("coordinator: persist initial state: %w", err)
	}

	c.logger.Info("harness run starting",
		slog.String("harness_id", c.state.ID.String()),
		slog.String("mode", string(c.state.Mode)),
		slog.Int("workers", c.pool.Size()),
	)

	if err := c.scaler.Start(ctx); err != nil {
		return fmt.Errorf("coordinator: start scale manager: %w", err)
	}
	if c.obs != nil {
		if err := c.obs.Start(ctx); err != nil {
			c.logger.Warn("observer start failed", slog.String("error", err.Error()))
		}
	}
	defer func() {
		_ = c.scaler.Stop(context.Background())
		if c.obs != nil {
			_ = c.obs.Stop(context.Background())
		}
		c.extensions.EmitShutdown(context.Background())
	}()

	return c.loop(ctx)
}

// Resume reloads a persisted run and continues its control loop. A paused
// run transitions back to running; terminal runs are rejected.
func (c *Coordinator) Resume(ctx context.Context, harnessID id.HarnessID) error {
	st, err := c.store.LoadState(ctx, harnessID)
	if err != nil {
		return fmt.Errorf("coordinator: resume: %w", err)
	}
	if st.Status.Terminal() {
		return fmt.Errorf("%w: run %s is %s", harness.ErrNotRunning, harnessID, st.Status)
	}
	if st.Status == harness.StatusPaused {
		if err := st.Resume(); err != nil {
			return fmt.Errorf("coordinator: resume: %w", err)
		}
	}

	c.state = st
	c.logger.Info("harness run resuming",
		slog.String("harness_id", st.ID.String()),
		slog.Int("sessions_completed", st.SessionsCompleted),
	)
	return c.Run(ctx)
}

func (c *Coordinator) loop(ctx context.Context) error {
	idlePolls := 0

	for {
		c.drainCompletions(ctx)

		if ctx.Err() != nil {
			return c.shutdown(ctx)
		}
		if reason, ok := c.pauseRequested(); ok {
			return c.pause(ctx, reason)
		}

		// Diff the work graph for externally-introduced changes.
		check := c.detector.Check(ctx, c.snapshot, c.source, c.scopeID, c.activeView())
		c.snapshot = check.Snapshot
		if len(check.Redirects) > 0 {
			c.extensions.EmitRedirectDetected(ctx, check.Redirects)
			for _, r := range check.Redirects {
				c.notes = append(c.notes, r.Reason)
			}
			if redirect.RequiresImmediateAction(check.Redirects) && c.tracker.PendingSessions() > 0 {
				c.createCheckpoint(ctx, "critical redirect")
			}
		}
		if check.ShouldPause {
			return c.pause(ctx, check.PauseReason)
		}

		// Confidence gate: a pause here is policy, not failure.
		if pause, conf := c.tracker.ShouldPauseForConfidence(c.policy.ConfidenceThreshold); pause {
			return c.pause(ctx, fmt.Sprintf(
				"confidence %.2f below threshold %.2f", conf, c.policy.ConfidenceThreshold))
		}

		if create, reason := c.tracker.ShouldCreateCheckpoint(false); create {
			c.createCheckpoint(ctx, reason)
		}

		items, err := c.source.GetReadyWork(ctx, c.scopeID)
		if err != nil {
			c.logger.Warn("work source poll failed", slog.String("error", err.Error()))
			c.sleep(ctx, c.config.IdleWait)
			continue
		}
		c.pendingWork = len(items)
		c.scaler.SetPendingWork(len(items))

		c.observe()

		// Hard stop on assignment while the queue is over the bound. The
		// scale manager's health loop grows the pool independently.
		if c.scaler.ShouldApplyBackpressure() {
			c.logger.Info("backpressure active",
				slog.Float64("queue_depth", c.scaler.QueueDepth()),
				slog.Float64("max_queue_depth", c.scaler.Config().MaxQueueDepth),
			)
			c.sleep(ctx, c.config.BackpressureWait)
			continue
		}

		if len(items) == 0 && c.inFlight == 0 {
			return c.complete(ctx)
		}

		if len(items) == 0 {
			// Workers still busy: join one completion instead of spinning.
			if c.inFlight > 0 {
				c.joinOne(ctx)
				continue
			}
			idlePolls++
			c.sleep(ctx, c.bo.Delay(idlePolls))
			continue
		}
		idlePolls = 0

		dispatched, err := c.dispatch(ctx, items)
		if err != nil {
			return c.fail(ctx, err)
		}
		if dispatched == 0 && c.inFlight > 0 {
			// Pool saturated; wait for a session to finish.
			c.joinOne(ctx)
			continue
		}

		c.sleep(ctx, c.config.TickInterval)
	}
}

// dispatch claims one session per available worker. It returns the number
// of sessions launched; a priming failure aborts the run.
func (c *Coordinator) dispatch(ctx context.Context, items []*work.Item) (int, error) {
	skipped := make(map[string]struct{})
	dispatched := 0

	for {
		w := c.pool.Available()
		if w == nil {
			break
		}

		item := c.nextItem(ctx, items, skipped)
		if item == nil {
			w.Reset()
			break
		}

		if !w.ClaimWork(ctx, item) {
			// Claim rejected (item taken elsewhere): skip it this tick.
			skipped[item.ID] = struct{}{}
			continue
		}
		// Our claim removes the item from the ready set. Prune it from the
		// carried snapshot so the detector never reads the claim as an
		// external cancellation.
		if c.snapshot != nil {
			delete(c.snapshot.Items, item.ID)
		}

		pc, err := c.prime(ctx, item)
		if err != nil {
			w.Reset()
			if relErr := c.source.UpdateStatus(ctx, item.ID, work.StatusOpen); relErr != nil {
				c.logger.Warn("release after priming failure",
					slog.String("issue_id", item.ID),
					slog.String("error", relErr.Error()),
				)
			}
			return dispatched, err
		}

		c.assigned[item.ID] = item.Priority
		c.inFlight++
		c.state.CurrentSession++
		c.scaler.RecordSessionStart(w.ID(), item.ID)
		c.extensions.EmitSessionStarted(ctx, w.ID(), item)

		go func(w *worker.Worker, pc *session.PrimingContext) {
			c.completions <- w.Execute(ctx, pc)
		}(w, pc)
		dispatched++
	}

	return dispatched, nil
}

// nextItem selects the next issue: convoy-first when a convoy is active,
// falling back to the source's own order. Items already assigned or
// skipped this tick are never selected.
func (c *Coordinator) nextItem(ctx context.Context, items []*work.Item, skipped map[string]struct{}) *work.Item {
	selectable := func(it *work.Item) bool {
		if it.Status != "" && it.Status != work.StatusOpen {
			return false
		}
		// Pause markers are requests to the harness, not work.
		if it.HasLabel(work.LabelPause) {
			return false
		}
		if _, ok := c.assigned[it.ID]; ok {
			return false
		}
		_, ok := skipped[it.ID]
		return !ok
	}

	if c.convoy != nil {
		item, err := c.convoy.NextIssue(ctx, c.source, c.scopeID)
		if err != nil {
			c.logger.Warn("convoy selection failed",
				slog.String("convoy", c.convoy.Name()),
				slog.String("error", err.Error()),
			)
		} else if item != nil && selectable(item) {
			return item
		}
		// nil, nil means the convoy is empty: fall through to default.
	}

	for _, it := range items {
		if selectable(it) {
			return it
		}
	}
	return nil
}

// prime builds the session priming context. Failure here is fatal to the
// run: a session must never start half-primed.
func (c *Coordinator) prime(ctx context.Context, item *work.Item) (*session.PrimingContext, error) {
	history, err := c.store.ListResults(ctx, c.state.ID, c.config.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: load session history: %v", harness.ErrPriming, err)
	}

	notes := make([]string, len(c.notes))
	copy(notes, c.notes)

	return &session.PrimingContext{
		Item:             item,
		History:          history,
		LastCheckpointID: c.state.LastCheckpointID,
		RedirectNotes:    notes,
		Goal:             fmt.Sprintf("complete %s: %s", item.ID, item.Title),
		Timeout:          c.config.SessionTimeout,
	}, nil
}

// fold integrates one finished session: metrics, checkpoint buffer,
// persistence, external status, and run counters. Folding is commutative —
// sessions may complete in any order.
func (c *Coordinator) fold(ctx context.Context, res *session.Result) {
	c.inFlight--
	delete(c.assigned, res.IssueID)

	res.HarnessID = c.state.ID
	if res.CreatedAt.IsZero() {
		res.Entity = harness.NewEntity()
	}

	success := res.Outcome.Positive()
	c.scaler.RecordSessionComplete(res.WorkerID, res.IssueID, success)
	c.tracker.RecordSession(res)

	if err := c.store.SaveResult(ctx, res); err != nil {
		c.logger.Warn("persist session result",
			slog.String("session_id", res.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	status := work.StatusOpen
	if success {
		status = work.StatusClosed
	}
	if err := c.source.UpdateStatus(ctx, res.IssueID, status); err != nil {
		c.logger.Warn("update issue status",
			slog.String("issue_id", res.IssueID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
	if success && c.convoy != nil {
		c.convoy.MarkCompleted(res.IssueID)
	}

	c.state.SessionsCompleted++
	if success {
		c.state.FeaturesCompleted++
	} else {
		c.state.FeaturesFailed++
	}
	c.state.Touch()
	if err := c.store.SaveState(ctx, c.state); err != nil {
		c.logger.Warn("persist run state", slog.String("error", err.Error()))
	}

	c.extensions.EmitSessionCompleted(ctx, res)
}

// drainCompletions folds every already-finished session without blocking.
func (c *Coordinator) drainCompletions(ctx context.Context) {
	for {
		select {
		case res := <-c.completions:
			c.fold(ctx, res)
		default:
			return
		}
	}
}

// joinOne blocks until one session completes, the tick interval elapses,
// or ctx is cancelled.
func (c *Coordinator) joinOne(ctx context.Context) {
	timer := time.NewTimer(c.config.TickInterval)
	defer timer.Stop()

	select {
	case res := <-c.completions:
		c.fold(ctx, res)
	case <-timer.C:
	case <-ctx.Done():
	}
}

// drainInFlight waits for every in-flight session, bounded by the
// shutdown timeout. Sessions still running after the bound are abandoned
// — the executor contract has no interrupt primitive.
func (c *Coordinator) drainInFlight(ctx context.Context) {
	if c.inFlight == 0 {
		return
	}

	deadline := time.NewTimer(c.config.ShutdownTimeout)
	defer deadline.Stop()

	for c.inFlight > 0 {
		select {
		case res := <-c.completions:
			c.fold(ctx, res)
		case <-deadline.C:
			c.logger.Warn("abandoning in-flight sessions",
				slog.Int("in_flight", c.inFlight),
			)
			return
		}
	}
}

func (c *Coordinator) pause(ctx context.Context, reason string) error {
	c.drainInFlight(ctx)

	if c.tracker.PendingSessions() > 0 {
		c.createCheckpoint(ctx, "pausing: "+reason)
	}

	if err := c.state.Pause(reason); err != nil {
		return fmt.Errorf("coordinator: pause: %w", err)
	}
	if err := c.store.SaveState(ctx, c.state); err != nil {
		c.logger.Warn("persist paused state", slog.String("error", err.Error()))
	}

	c.extensions.EmitHarnessPaused(ctx, c.state.ID, reason)
	c.logger.Info("harness paused",
		slog.String("harness_id", c.state.ID.String()),
		slog.String("reason", reason),
	)
	return nil
}

func (c *Coordinator) complete(ctx context.Context) error {
	if c.tracker.PendingSessions() > 0 {
		c.createCheckpoint(ctx, "run completed")
	}

	if err := c.state.Transition(harness.StatusCompleted); err != nil {
		return fmt.Errorf("coordinator: complete: %w", err)
	}
	if err := c.store.SaveState(ctx, c.state); err != nil {
		c.logger.Warn("persist completed state", slog.String("error", err.Error()))
	}

	c.logger.Info("harness completed",
		slog.String("harness_id", c.state.ID.String()),
		slog.Int("features_completed", c.state.FeaturesCompleted),
		slog.Int("features_failed", c.state.FeaturesFailed),
	)
	return nil
}

func (c *Coordinator) fail(ctx context.Context, cause error) error {
	c.drainInFlight(ctx)

	c.state.PauseReason = cause.Error()
	if err := c.state.Transition(harness.StatusFailed); err != nil {
		c.logger.Warn("transition to failed", slog.String("error", err.Error()))
	}
	if err := c.store.SaveState(ctx, c.state); err != nil {
		c.logger.Warn("persist failed state", slog.String("error", err.Error()))
	}

	c.logger.Error("harness failed",
		slog.String("harness_id", c.state.ID.String()),
		slog.String("error", cause.Error()),
	)
	return cause
}

// shutdown handles context cancellation: drain what we can, then park the
// run as paused so Resume can pick it up.
func (c *Coordinator) shutdown(ctx context.Context) error {
	bg := context.Background()
	c.drainInFlight(bg)

	if err := c.state.Pause("shutdown requested"); err != nil {
		c.logger.Warn("pause on shutdown", slog.String("error", err.Error()))
	}
	if err := c.store.SaveState(bg, c.state); err != nil {
		c.logger.Warn("persist state on shutdown", slog.String("error", err.Error()))
	}

	c.logger.Info("harness shut down",
		slog.String("harness_id", c.state.ID.String()),
	)
	return ctx.Err()
}

func (c *Coordinator) createCheckpoint(ctx context.Context, reason string) {
	cp := c.tracker.Generate(c.state.ID, reason)

	if err := c.store.SaveCheckpoint(ctx, cp); err != nil {
		c.logger.Warn("persist checkpoint",
			slog.String("checkpoint_id", cp.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	c.state.LastCheckpointID = cp.ID
	c.state.Touch()
	if err := c.store.SaveState(ctx, c.state); err != nil {
		c.logger.Warn("persist run state", slog.String("error", err.Error()))
	}

	// Redirect notes have been surfaced to humans via the checkpoint.
	c.notes = nil

	c.extensions.EmitCheckpointCreated(ctx, cp)
}

// activeView summarizes in-flight assignments for the redirect detector.
func (c *Coordinator) activeView() redirect.ActiveView {
	view := redirect.ActiveView{}
	for issueID, priority := range c.assigned {
		view.AssignedIssues = append(view.AssignedIssues, issueID)
		if len(view.AssignedIssues) == 1 || priority < view.TopPriority {
			view.TopPriority = priority
		}
	}
	return view
}

// observe takes a non-blocking monitoring snapshot.
func (c *Coordinator) observe() {
	if c.obs == nil {
		return
	}

	stateCopy := *c.state
	workers := c.pool.All()
	states := make([]observer.WorkerState, 0, len(workers))
	for _, w := range workers {
		ws := observer.WorkerState{
			ID:       w.ID(),
			State:    string(w.State()),
			Sessions: w.Sessions(),
		}
		if a := w.Assignment(); a != nil {
			ws.IssueID = a.IssueID
		}
		if started, ok := w.SessionStartedAt(); ok {
			ws.StartedAt = started
		}
		states = append(states, ws)
	}

	c.obs.Observe(&observer.Snapshot{
		TakenAt:      time.Now().UTC(),
		State:        &stateCopy,
		Workers:      states,
		ScaleMetrics: c.scaler.GetMetrics(),
		PendingWork:  c.pendingWork,
	})
}

// sleep waits for d or until one session completes, whichever comes
// first, so a finished worker is never left idle for a full wait.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case res := <-c.completions:
		c.fold(ctx, res)
	case <-timer.C:
	case <-ctx.Done():
	}
}
