package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

// SaveResult persists a session result. Re-saving the same result id is a
// no-op update, so retried folds stay idempotent.
func (s *Store) SaveResult(ctx context.Context, res *session.Result) error {
	m := toResultModel(res)

	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("outcome = EXCLUDED.outcome").
		Set("summary = EXCLUDED.summary").
		Set("error = EXCLUDED.error").
		Set("duration_ns = EXCLUDED.duration_ns").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("harness/bun: save result: %w", err)
	}
	return nil
}

// ListResults returns results for a run, newest first. A limit of zero
// returns everything.
func (s *Store) ListResults(ctx context.Context, harnessID id.HarnessID, limit int) ([]*session.Result, error) {
	var models []resultModel
	q := s.db.NewSelect().Model(&models).
		Where("harness_id = ?", harnessID.String()).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("harness/bun: list results: %w", err)
	}

	results := make([]*session.Result, 0, len(models))
	for i := range models {
		res, convErr := fromResultModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("harness/bun: list results convert: %w", convErr)
		}
		results = append(results, res)
	}
	return results, nil
}
