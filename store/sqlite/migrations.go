package sqlite

// migrations are applied in order by Migrate. Statements are idempotent
// so re-running on an existing file is safe.
var migrations = []string{
	`PRAGMA journal_mode = WAL`,

	`CREATE TABLE IF NOT EXISTS harness_states (
		id                  TEXT PRIMARY KEY,
		mode                TEXT NOT NULL,
		status              TEXT NOT NULL,
		checkpoint_policy   TEXT NOT NULL,
		sessions_completed  INTEGER NOT NULL DEFAULT 0,
		features_completed  INTEGER NOT NULL DEFAULT 0,
		features_total      INTEGER NOT NULL DEFAULT 0,
		features_failed     INTEGER NOT NULL DEFAULT 0,
		current_session     INTEGER NOT NULL DEFAULT 0,
		pause_reason        TEXT NOT NULL DEFAULT '',
		last_checkpoint_id  TEXT NOT NULL DEFAULT '',
		branch_ref          TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS harness_results (
		id          TEXT PRIMARY KEY,
		harness_id  TEXT NOT NULL,
		issue_id    TEXT NOT NULL,
		worker_id   TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		summary     TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_harness_results_run
		ON harness_results (harness_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS harness_checkpoints (
		id          TEXT PRIMARY KEY,
		harness_id  TEXT NOT NULL,
		reason      TEXT NOT NULL,
		results     TEXT NOT NULL,
		counts      TEXT NOT NULL,
		confidence  REAL NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_harness_checkpoints_run
		ON harness_checkpoints (harness_id, created_at DESC)`,
}
