package harness

import (
	"fmt"
	"time"

	"github.com/xraph/harness/id"
)

// Mode selects how a harness run sources and scopes its work.
type Mode string

const (
	// ModeWorkflow drives a single feature workflow to completion.
	ModeWorkflow Mode = "workflow"
	// ModePlatform drives an open-ended platform backlog.
	ModePlatform Mode = "platform"
)

// Status is the lifecycle status of a harness run.
type Status string

const (
	// StatusRunning means the control loop is actively assigning work.
	StatusRunning Status = "running"
	// StatusPaused means the loop stopped for human review and can resume.
	StatusPaused Status = "paused"
	// StatusCompleted means no ready work remained and no workers were active.
	StatusCompleted Status = "completed"
	// StatusFailed means a structural error ended the run.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CheckpointPolicy controls when progress checkpoints are generated and
// when low confidence pauses the run.
type CheckpointPolicy struct {
	// SessionsPerCheckpoint triggers a checkpoint after this many sessions
	// since the last one. Zero disables the count trigger.
	SessionsPerCheckpoint int `json:"sessions_per_checkpoint"`

	// Interval triggers a checkpoint after this much time has elapsed since
	// the last one, provided any sessions are buffered. Zero disables it.
	Interval time.Duration `json:"interval"`

	// Schedule is an optional cron expression (five fields or @descriptor)
	// for a fixed checkpoint cadence, evaluated alongside Interval.
	Schedule string `json:"schedule,omitempty"`

	// ConfidenceThreshold pauses the run when the rolling confidence over
	// buffered session outcomes drops below it.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// MinConfidenceSamples is how many results must be buffered before
	// the confidence gate may pause the run. Values below 1 are treated
	// as 1, so any sub-threshold confidence pauses; raise it to tolerate
	// isolated early failures.
	MinConfidenceSamples int `json:"min_confidence_samples,omitempty"`
}

// DefaultCheckpointPolicy returns the policy used when none is supplied:
// checkpoint every 5 sessions or 30 minutes, pause below 0.5 confidence.
func DefaultCheckpointPolicy() CheckpointPolicy {
	return CheckpointPolicy{
		SessionsPerCheckpoint: 5,
		Interval:              30 * time.Minute,
		ConfidenceThreshold:   0.5,
		MinConfidenceSamples:  1,
	}
}

// HarnessState is the externally persisted state of one coordination run.
// It is owned exclusively by the Coordinator: subsystems return data, only
// the control loop writes here.
type HarnessState struct {
	Entity

	ID               id.HarnessID     `json:"id"`
	Mode             Mode             `json:"mode"`
	Status           Status           `json:"status"`
	CheckpointPolicy CheckpointPolicy `json:"checkpoint_policy"`

	SessionsCompleted int `json:"sessions_completed"`
	FeaturesCompleted int `json:"features_completed"`
	FeaturesTotal     int `json:"features_total"`
	FeaturesFailed    int `json:"features_failed"`
	CurrentSession    int `json:"current_session"`

	PauseReason      string          `json:"pause_reason,omitempty"`
	LastCheckpointID id.CheckpointID `json:"last_checkpoint_id,omitempty"`
	BranchRef        string          `json:"branch_ref,omitempty"`
}

// NewState creates a fresh running HarnessState for the given mode.
func NewState(mode Mode, policy CheckpointPolicy) *HarnessState {
	return &HarnessState{
		Entity:           NewEntity(),
		ID:               id.NewHarnessID(),
		Mode:             mode,
		Status:           StatusRunning,
		CheckpointPolicy: policy,
	}
}

// validTransitions enumerates the permitted status edges. Transitions are
// monotonic except for the paused → running resume edge.
var validTransitions = map[Status][]Status{
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused:  {StatusRunning, StatusCompleted, StatusFailed},
}

// Transition moves the state to a new status, enforcing the monotonic
// transition invariant. It stamps UpdatedAt on success.
func (s *HarnessState) Transition(to Status) error {
	if s.Status == to {
		return nil
	}
	for _, allowed := range validTransitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.Touch()
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.Status, to)
}

// Pause transitions to paused and records a human-readable reason.
func (s *HarnessState) Pause(reason string) error {
	if err := s.Transition(StatusPaused); err != nil {
		return err
	}
	s.PauseReason = reason
	return nil
}

// Resume transitions a paused run back to running and clears the reason.
func (s *HarnessState) Resume() error {
	if err := s.Transition(StatusRunning); err != nil {
		return err
	}
	s.PauseReason = ""
	return nil
}
