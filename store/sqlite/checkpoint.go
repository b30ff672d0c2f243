package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

const checkpointColumns = `id, harness_id, reason, results, counts,
	confidence, created_at, updated_at`

// SaveCheckpoint persists a checkpoint with its captured results inline.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	results, err := json.Marshal(cp.Results)
	if err != nil {
		return fmt.Errorf("harness/sqlite: marshal checkpoint results: %w", err)
	}
	counts, err := json.Marshal(cp.Counts)
	if err != nil {
		return fmt.Errorf("harness/sqlite: marshal checkpoint counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO harness_checkpoints (`+checkpointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reason     = excluded.reason,
			results    = excluded.results,
			counts     = excluded.counts,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		cp.ID.String(), cp.HarnessID.String(), cp.Reason,
		string(results), string(counts), cp.Confidence,
		cp.CreatedAt.UTC().Format(time.RFC3339Nano),
		cp.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("harness/sqlite: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns a checkpoint by id, or ErrCheckpointNotFound.
func (s *Store) GetCheckpoint(ctx context.Context, checkpointID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM harness_checkpoints WHERE id = ?`,
		checkpointID.String())

	cp, err := scanCheckpoint(row)
	if err != nil {
		if isNoRows(err) {
			return nil, harness.ErrCheckpointNotFound
		}
		return nil, err
	}
	return cp, nil
}

// ListCheckpoints returns all checkpoints for a run, newest first.
func (s *Store) ListCheckpoints(ctx context.Context, harnessID id.HarnessID) ([]*checkpoint.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM harness_checkpoints
		WHERE harness_id = ? ORDER BY created_at DESC`,
		harnessID.String())
	if err != nil {
		return nil, fmt.Errorf("harness/sqlite: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func scanCheckpoint(row scanner) (*checkpoint.Checkpoint, error) {
	var (
		rawID, rawHarness    string
		results, counts      string
		createdAt, updatedAt string
	)
	cp := &checkpoint.Checkpoint{}

	err := row.Scan(&rawID, &rawHarness, &cp.Reason, &results, &counts,
		&cp.Confidence, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if cp.ID, err = id.ParseCheckpointID(rawID); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse checkpoint id %q: %w", rawID, err)
	}
	if cp.HarnessID, err = id.ParseHarnessID(rawHarness); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse harness id %q: %w", rawHarness, err)
	}
	if err := json.Unmarshal([]byte(results), &cp.Results); err != nil {
		return nil, fmt.Errorf("harness/sqlite: unmarshal checkpoint results: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &cp.Counts); err != nil {
		return nil, fmt.Errorf("harness/sqlite: unmarshal checkpoint counts: %w", err)
	}
	if cp.Counts == nil {
		cp.Counts = map[session.Outcome]int{}
	}
	if cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse created_at: %w", err)
	}
	if cp.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse updated_at: %w", err)
	}
	return cp, nil
}
