package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/harness"
	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
)

// SaveCheckpoint persists a checkpoint with its captured results inline.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	m, err := toCheckpointModel(cp)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("reason = EXCLUDED.reason").
		Set("results = EXCLUDED.results").
		Set("counts = EXCLUDED.counts").
		Set("confidence = EXCLUDED.confidence").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("harness/bun: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns a checkpoint by id, or ErrCheckpointNotFound.
func (s *Store) GetCheckpoint(ctx context.Context, checkpointID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	m := new(checkpointModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", checkpointID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, harness.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("harness/bun: get checkpoint: %w", err)
	}
	return fromCheckpointModel(m)
}

// ListCheckpoints returns all checkpoints for a run, newest first.
func (s *Store) ListCheckpoints(ctx context.Context, harnessID id.HarnessID) ([]*checkpoint.Checkpoint, error) {
	var models []checkpointModel
	err := s.db.NewSelect().Model(&models).
		Where("harness_id = ?", harnessID.String()).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("harness/bun: list checkpoints: %w", err)
	}

	checkpoints := make([]*checkpoint.Checkpoint, 0, len(models))
	for i := range models {
		cp, convErr := fromCheckpointModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("harness/bun: list checkpoints convert: %w", convErr)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}
