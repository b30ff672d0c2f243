package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
)

const stateColumns = `id, mode, status, checkpoint_policy, sessions_completed,
	features_completed, features_total, features_failed, current_session,
	pause_reason, last_checkpoint_id, branch_ref, created_at, updated_at`

// SaveState upserts the full run state keyed by harness id.
func (s *Store) SaveState(ctx context.Context, st *harness.HarnessState) error {
	policy, err := json.Marshal(st.CheckpointPolicy)
	if err != nil {
		return fmt.Errorf("harness/sqlite: marshal checkpoint policy: %w", err)
	}

	lastCheckpoint := ""
	if !st.LastCheckpointID.IsNil() {
		lastCheckpoint = st.LastCheckpointID.String()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO harness_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode               = excluded.mode,
			status             = excluded.status,
			checkpoint_policy  = excluded.checkpoint_policy,
			sessions_completed = excluded.sessions_completed,
			features_completed = excluded.features_completed,
			features_total     = excluded.features_total,
			features_failed    = excluded.features_failed,
			current_session    = excluded.current_session,
			pause_reason       = excluded.pause_reason,
			last_checkpoint_id = excluded.last_checkpoint_id,
			branch_ref         = excluded.branch_ref,
			updated_at         = excluded.updated_at`,
		st.ID.String(), string(st.Mode), string(st.Status), string(policy),
		st.SessionsCompleted, st.FeaturesCompleted, st.FeaturesTotal,
		st.FeaturesFailed, st.CurrentSession, st.PauseReason,
		lastCheckpoint, st.BranchRef,
		st.CreatedAt.UTC().Format(time.RFC3339Nano),
		st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("harness/sqlite: save state: %w", err)
	}
	return nil
}

// LoadState returns the state for a run id, or ErrStateNotFound.
func (s *Store) LoadState(ctx context.Context, harnessID id.HarnessID) (*harness.HarnessState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM harness_states WHERE id = ?`,
		harnessID.String())

	st, err := scanState(row)
	if err != nil {
		if isNoRows(err) {
			return nil, harness.ErrStateNotFound
		}
		return nil, err
	}
	return st, nil
}

// ListStates returns all persisted run states, newest first.
func (s *Store) ListStates(ctx context.Context) ([]*harness.HarnessState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM harness_states ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("harness/sqlite: list states: %w", err)
	}
	defer rows.Close()

	var out []*harness.HarnessState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan path.
type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*harness.HarnessState, error) {
	var (
		rawID, mode, status, policy         string
		pauseReason, lastCheckpoint, branch string
		createdAt, updatedAt                string
	)
	st := &harness.HarnessState{}

	err := row.Scan(&rawID, &mode, &status, &policy,
		&st.SessionsCompleted, &st.FeaturesCompleted, &st.FeaturesTotal,
		&st.FeaturesFailed, &st.CurrentSession,
		&pauseReason, &lastCheckpoint, &branch, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	st.ID, err = id.ParseHarnessID(rawID)
	if err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse state id %q: %w", rawID, err)
	}
	st.Mode = harness.Mode(mode)
	st.Status = harness.Status(status)
	st.PauseReason = pauseReason
	st.BranchRef = branch

	if err := json.Unmarshal([]byte(policy), &st.CheckpointPolicy); err != nil {
		return nil, fmt.Errorf("harness/sqlite: unmarshal checkpoint policy: %w", err)
	}
	if lastCheckpoint != "" {
		st.LastCheckpointID, err = id.ParseCheckpointID(lastCheckpoint)
		if err != nil {
			return nil, fmt.Errorf("harness/sqlite: parse checkpoint id %q: %w", lastCheckpoint, err)
		}
	}
	if st.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse created_at: %w", err)
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse updated_at: %w", err)
	}
	return st, nil
}
