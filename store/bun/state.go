package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
)

// SaveState upserts the full run state keyed by harness id.
func (s *Store) SaveState(ctx context.Context, st *harness.HarnessState) error {
	m, err := toStateModel(st)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("mode = EXCLUDED.mode").
		Set("status = EXCLUDED.status").
		Set("checkpoint_policy = EXCLUDED.checkpoint_policy").
		Set("sessions_completed = EXCLUDED.sessions_completed").
		Set("features_completed = EXCLUDED.features_completed").
		Set("features_total = EXCLUDED.features_total").
		Set("features_failed = EXCLUDED.features_failed").
		Set("current_session = EXCLUDED.current_session").
		Set("pause_reason = EXCLUDED.pause_reason").
		Set("last_checkpoint_id = EXCLUDED.last_checkpoint_id").
		Set("branch_ref = EXCLUDED.branch_ref").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("harness/bun: save state: %w", err)
	}
	return nil
}

// LoadState returns the state for a run id, or ErrStateNotFound.
func (s *Store) LoadState(ctx context.Context, harnessID id.HarnessID) (*harness.HarnessState, error) {
	m := new(stateModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", harnessID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, harness.ErrStateNotFound
		}
		return nil, fmt.Errorf("harness/bun: load state: %w", err)
	}
	return fromStateModel(m)
}

// ListStates returns all persisted run states, newest first.
func (s *Store) ListStates(ctx context.Context) ([]*harness.HarnessState, error) {
	var models []stateModel
	err := s.db.NewSelect().Model(&models).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: list states: %w", err)
	}

	states := make([]*harness.HarnessState, 0, len(models))
	for i := range models {
		st, convErr := fromStateModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("harness/bun: list states convert: %w", convErr)
		}
		states = append(states, st)
	}
	return states, nil
}
