package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/harness"
	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

// ── Run state model ───────────────────────────────────────────────

type stateModel struct {
	bun.BaseModel `bun:"table:harness_states"`

	ID                string    `bun:"id,pk"`
	Mode              string    `bun:"mode,notnull"`
	Status            string    `bun:"status,notnull"`
	CheckpointPolicy  []byte    `bun:"checkpoint_policy,notnull,type:jsonb"`
	SessionsCompleted int       `bun:"sessions_completed,notnull,default:0"`
	FeaturesCompleted int       `bun:"features_completed,notnull,default:0"`
	FeaturesTotal     int       `bun:"features_total,notnull,default:0"`
	FeaturesFailed    int       `bun:"features_failed,notnull,default:0"`
	CurrentSession    int       `bun:"current_session,notnull,default:0"`
	PauseReason       string    `bun:"pause_reason"`
	LastCheckpointID  string    `bun:"last_checkpoint_id"`
	BranchRef         string    `bun:"branch_ref"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toStateModel(st *harness.HarnessState) (*stateModel, error) {
	policy, err := json.Marshal(st.CheckpointPolicy)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: marshal checkpoint policy: %w", err)
	}

	lastCheckpoint := ""
	if !st.LastCheckpointID.IsNil() {
		lastCheckpoint = st.LastCheckpointID.String()
	}

	return &stateModel{
		ID:                st.ID.String(),
		Mode:              string(st.Mode),
		Status:            string(st.Status),
		CheckpointPolicy:  policy,
		SessionsCompleted: st.SessionsCompleted,
		FeaturesCompleted: st.FeaturesCompleted,
		FeaturesTotal:     st.FeaturesTotal,
		FeaturesFailed:    st.FeaturesFailed,
		CurrentSession:    st.CurrentSession,
		PauseReason:       st.PauseReason,
		LastCheckpointID:  lastCheckpoint,
		BranchRef:         st.BranchRef,
		CreatedAt:         st.CreatedAt,
		UpdatedAt:         st.UpdatedAt,
	}, nil
}

func fromStateModel(m *stateModel) (*harness.HarnessState, error) {
	parsedID, err := id.ParseHarnessID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: parse state id %q: %w", m.ID, err)
	}

	st := &harness.HarnessState{
		Entity: harness.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                parsedID,
		Mode:              harness.Mode(m.Mode),
		Status:            harness.Status(m.Status),
		SessionsCompleted: m.SessionsCompleted,
		FeaturesCompleted: m.FeaturesCompleted,
		FeaturesTotal:     m.FeaturesTotal,
		FeaturesFailed:    m.FeaturesFailed,
		CurrentSession:    m.CurrentSession,
		PauseReason:       m.PauseReason,
		BranchRef:         m.BranchRef,
	}

	if err := json.Unmarshal(m.CheckpointPolicy, &st.CheckpointPolicy); err != nil {
		return nil, fmt.Errorf("harness/bun: unmarshal checkpoint policy: %w", err)
	}

	if m.LastCheckpointID != "" {
		parsedCP, cpErr := id.ParseCheckpointID(m.LastCheckpointID)
		if cpErr != nil {
			return nil, fmt.Errorf("harness/bun: parse checkpoint id %q: %w", m.LastCheckpointID, cpErr)
		}
		st.LastCheckpointID = parsedCP
	}

	return st, nil
}

// ── Session result model ──────────────────────────────────────────

type resultModel struct {
	bun.BaseModel `bun:"table:harness_results"`

	ID         string    `bun:"id,pk"`
	HarnessID  string    `bun:"harness_id,notnull"`
	IssueID    string    `bun:"issue_id,notnull"`
	WorkerID   string    `bun:"worker_id,notnull"`
	Outcome    string    `bun:"outcome,notnull"`
	Summary    string    `bun:"summary"`
	Error      string    `bun:"error"`
	DurationNs int64     `bun:"duration_ns,notnull,default:0"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toResultModel(r *session.Result) *resultModel {
	return &resultModel{
		ID:         r.ID.String(),
		HarnessID:  r.HarnessID.String(),
		IssueID:    r.IssueID,
		WorkerID:   r.WorkerID.String(),
		Outcome:    string(r.Outcome),
		Summary:    r.Summary,
		Error:      r.Error,
		DurationNs: r.Duration.Nanoseconds(),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func fromResultModel(m *resultModel) (*session.Result, error) {
	parsedID, err := id.ParseSessionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: parse result id %q: %w", m.ID, err)
	}
	parsedHarness, err := id.ParseHarnessID(m.HarnessID)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: parse harness id %q: %w", m.HarnessID, err)
	}
	parsedWorker, err := id.ParseWorkerID(m.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: parse worker id %q: %w", m.WorkerID, err)
	}

	return &session.Result{
		Entity: harness.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        parsedID,
		HarnessID: parsedHarness,
		IssueID:   m.IssueID,
		WorkerID:  parsedWorker,
		Outcome:   session.Outcome(m.Outcome),
		Summary:   m.Summary,
		Error:     m.Error,
		Duration:  time.Duration(m.DurationNs),
	}, nil
}

// ── Checkpoint model ──────────────────────────────────────────────

type checkpointModel struct {
	bun.BaseModel `bun:"table:harness_checkpoints"`

	ID         string    `bun:"id,pk"`
	HarnessID  string    `bun:"harness_id,notnull"`
	Reason     string    `bun:"reason,notnull"`
	Results    []byte    `bun:"results,notnull,type:jsonb"`
	Counts     []byte    `bun:"counts,notnull,type:jsonb"`
	Confidence float64   `bun:"confidence,notnull,default:0"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toCheckpointModel(cp *checkpoint.Checkpoint) (*checkpointModel, error) {
	results, err := json.Marshal(cp.Results)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: marshal checkpoint results: %w", err)
	}
	counts, err := json.Marshal(cp.Counts)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: marshal checkpoint counts: %w", err)
	}

	return &checkpointModel{
		ID:         cp.ID.String(),
		HarnessID:  cp.HarnessID.String(),
		Reason:     cp.Reason,
		Results:    results,
		Counts:     counts,
		Confidence: cp.Confidence,
		CreatedAt:  cp.CreatedAt,
		UpdatedAt:  cp.UpdatedAt,
	}, nil
}

func fromCheckpointModel(m *checkpointModel) (*checkpoint.Checkpoint, error) {
	parsedID, err := id.ParseCheckpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: parse checkpoint id %q: %w", m.ID, err)
	}
	parsedHarness, err := id.ParseHarnessID(m.HarnessID)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: parse harness id %q: %w", m.HarnessID, err)
	}

	cp := &checkpoint.Checkpoint{
		Entity: harness.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		HarnessID:  parsedHarness,
		Reason:     m.Reason,
		Confidence: m.Confidence,
	}

	if err := json.Unmarshal(m.Results, &cp.Results); err != nil {
		return nil, fmt.Errorf("harness/bun: unmarshal checkpoint results: %w", err)
	}
	if err := json.Unmarshal(m.Counts, &cp.Counts); err != nil {
		return nil, fmt.Errorf("harness/bun: unmarshal checkpoint counts: %w", err)
	}
	if cp.Counts == nil {
		cp.Counts = map[session.Outcome]int{}
	}

	return cp, nil
}
