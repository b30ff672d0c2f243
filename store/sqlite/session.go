package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

const resultColumns = `id, harness_id, issue_id, worker_id, outcome,
	summary, error, duration_ns, created_at, updated_at`

// SaveResult persists a session result. Re-saving the same result id is a
// no-op update, so retried folds stay idempotent.
func (s *Store) SaveResult(ctx context.Context, res *session.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO harness_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome     = excluded.outcome,
			summary     = excluded.summary,
			error       = excluded.error,
			duration_ns = excluded.duration_ns,
			updated_at  = excluded.updated_at`,
		res.ID.String(), res.HarnessID.String(), res.IssueID,
		res.WorkerID.String(), string(res.Outcome), res.Summary, res.Error,
		int64(res.Duration),
		res.CreatedAt.UTC().Format(time.RFC3339Nano),
		res.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("harness/sqlite: save result: %w", err)
	}
	return nil
}

// ListResults returns results for a run, newest first. A limit of zero
// returns everything.
func (s *Store) ListResults(ctx context.Context, harnessID id.HarnessID, limit int) ([]*session.Result, error) {
	q := `SELECT ` + resultColumns + ` FROM harness_results
		WHERE harness_id = ? ORDER BY created_at DESC`
	args := []any{harnessID.String()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("harness/sqlite: list results: %w", err)
	}
	defer rows.Close()

	var out []*session.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResult(row scanner) (*session.Result, error) {
	var (
		rawID, rawHarness, rawWorker, outcome string
		durationNs                            int64
		createdAt, updatedAt                  string
	)
	res := &session.Result{}

	err := row.Scan(&rawID, &rawHarness, &res.IssueID, &rawWorker, &outcome,
		&res.Summary, &res.Error, &durationNs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if res.ID, err = id.ParseSessionID(rawID); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse result id %q: %w", rawID, err)
	}
	if res.HarnessID, err = id.ParseHarnessID(rawHarness); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse harness id %q: %w", rawHarness, err)
	}
	if res.WorkerID, err = id.ParseWorkerID(rawWorker); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse worker id %q: %w", rawWorker, err)
	}
	res.Outcome = session.Outcome(outcome)
	res.Duration = time.Duration(durationNs)

	if res.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse created_at: %w", err)
	}
	if res.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("harness/sqlite: parse updated_at: %w", err)
	}
	return res, nil
}
