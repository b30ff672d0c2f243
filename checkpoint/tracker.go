package checkpoint

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

// cronParser accepts standard 5-field expressions plus descriptors
// like "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule validates and parses a checkpoint cadence expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Tracker accumulates session results since the last checkpoint. All
// methods are safe for concurrent use; checkpoint generation flushes the
// buffer atomically so results are neither lost nor double-counted across
// a concurrent RecordSession.
type Tracker struct {
	policy harness.CheckpointPolicy
	sched  cronlib.Schedule
	logger *slog.Logger

	mu               sync.Mutex
	buffer           []*session.Result
	seen             map[string]struct{}
	lastCheckpointAt time.Time
	nextScheduledAt  time.Time
}

// NewTracker creates a tracker for the given policy. An invalid
// policy.Schedule expression is a configuration error.
func NewTracker(policy harness.CheckpointPolicy, logger *slog.Logger) (*Tracker, error) {
	t := &Tracker{
		policy:           policy,
		logger:           logger,
		seen:             make(map[string]struct{}),
		lastCheckpointAt: time.Now().UTC(),
	}

	if policy.Schedule != "" {
		sched, err := ParseSchedule(policy.Schedule)
		if err != nil {
			return nil, err
		}
		t.sched = sched
		t.nextScheduledAt = sched.Next(time.Now().UTC())
	}

	return t, nil
}

// RecordSession appends a result to the in-flight buffer. Recording is
// idempotent by session ID, which tolerates a coordinator restart
// replaying a fold.
func (t *Tracker) RecordSession(r *session.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := r.ID.String()
	if key != "" {
		if _, dup := t.seen[key]; dup {
			return
		}
		t.seen[key] = struct{}{}
	}
	t.buffer = append(t.buffer, r)
}

// PendingSessions returns how many results are buffered since the last
// checkpoint.
func (t *Tracker) PendingSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// ShouldCreateCheckpoint reports whether a checkpoint is due and why.
// force always triggers (used when a redirect needs immediate human
// visibility); otherwise the session-count, interval, and cron-schedule
// triggers apply, each requiring a non-empty buffer.
func (t *Tracker) ShouldCreateCheckpoint(force bool) (create bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if force {
		return true, "forced checkpoint"
	}
	if len(t.buffer) == 0 {
		return false, ""
	}

	if t.policy.SessionsPerCheckpoint > 0 && len(t.buffer) >= t.policy.SessionsPerCheckpoint {
		return true, fmt.Sprintf("%d sessions since last checkpoint", len(t.buffer))
	}

	now := time.Now().UTC()
	if t.policy.Interval > 0 && now.Sub(t.lastCheckpointAt) >= t.policy.Interval {
		return true, fmt.Sprintf("checkpoint interval %s elapsed", t.policy.Interval)
	}
	if t.sched != nil && !t.nextScheduledAt.IsZero() && now.After(t.nextScheduledAt) {
		return true, fmt.Sprintf("scheduled cadence %q fired", t.policy.Schedule)
	}

	return false, ""
}

// CalculateConfidence scores a result sequence in [0,1]. Recent outcomes
// carry linearly heavier weight, so recent failures dominate older
// successes. The weighting preserves monotonicity: appending a success
// never lowers the score and appending a failure never raises it.
func CalculateConfidence(results []*session.Result) float64 {
	if len(results) == 0 {
		return 1
	}

	var weighted, total float64
	for i, r := range results {
		w := float64(i + 1)
		weighted += w * sessionValue(r.Outcome)
		total += w
	}
	return weighted / total
}

// Confidence returns the score over the current buffer.
func (t *Tracker) Confidence() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CalculateConfidence(t.buffer)
}

// ShouldPauseForConfidence reports whether confidence over the buffered
// results has dropped below the threshold, along with the numeric score
// for the pause reason. The gate stays closed until the policy's
// MinConfidenceSamples results are buffered; the default of 1 means any
// sub-threshold confidence pauses.
func (t *Tracker) ShouldPauseForConfidence(threshold float64) (pause bool, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	minSamples := t.policy.MinConfidenceSamples
	if minSamples < 1 {
		minSamples = 1
	}
	confidence = CalculateConfidence(t.buffer)
	if len(t.buffer) < minSamples {
		return false, confidence
	}
	return confidence < threshold, confidence
}

// Generate creates a checkpoint from the buffered results and resets the
// tracker in the same critical section, so a concurrent RecordSession is
// counted in exactly one checkpoint.
func (t *Tracker) Generate(harnessID id.HarnessID, reason string) *Checkpoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	results := t.buffer
	cp := &Checkpoint{
		Entity:     harness.NewEntity(),
		ID:         id.NewCheckpointID(),
		HarnessID:  harnessID,
		Reason:     reason,
		Results:    results,
		Counts:     outcomeCounts(results),
		Confidence: CalculateConfidence(results),
	}

	t.resetLocked()

	t.logger.Info("checkpoint generated",
		slog.String("checkpoint_id", cp.ID.String()),
		slog.String("reason", reason),
		slog.Int("sessions", len(results)),
		slog.Float64("confidence", cp.Confidence),
	)

	return cp
}

// Reset clears the buffer and restarts the cadence timers without
// generating a checkpoint.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *Tracker) resetLocked() {
	t.buffer = nil
	now := time.Now().UTC()
	t.lastCheckpointAt = now
	if t.sched != nil {
		t.nextScheduledAt = t.sched.Next(now)
	}
}
