package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/harness"
	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ harness.StateStore  = (*Store)(nil)
	_ session.ResultStore = (*Store)(nil)
	_ checkpoint.Store    = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	states      map[string]*harness.HarnessState
	results     map[string]*session.Result
	resultOrder []string
	checkpoints map[string]*checkpoint.Checkpoint
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		states:      make(map[string]*harness.HarnessState),
		results:     make(map[string]*session.Result),
		checkpoints: make(map[string]*checkpoint.Checkpoint),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// State Store
// ──────────────────────────────────────────────────

// SaveState inserts or updates the full run state.
func (m *Store) SaveState(_ context.Context, s *harness.HarnessState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.states[s.ID.String()] = &cp
	return nil
}

// LoadState returns the state for a run id, or ErrStateNotFound.
func (m *Store) LoadState(_ context.Context, harnessID id.HarnessID) (*harness.HarnessState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[harnessID.String()]
	if !ok {
		return nil, harness.ErrStateNotFound
	}
	cp := *s
	return &cp, nil
}

// ListStates returns all persisted run states, newest first.
func (m *Store) ListStates(_ context.Context) ([]*harness.HarnessState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*harness.HarnessState, 0, len(m.states))
	for _, s := range m.states {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ──────────────────────────────────────────────────
// Result Store
// ──────────────────────────────────────────────────

// SaveResult persists one session result. Idempotent by result ID.
func (m *Store) SaveResult(_ context.Context, r *session.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, exists := m.results[key]; !exists {
		m.resultOrder = append(m.resultOrder, key)
	}
	cp := *r
	m.results[key] = &cp
	return nil
}

// ListResults returns results for a run, newest first, capped at limit.
// Zero limit means no cap.
func (m *Store) ListResults(_ context.Context, harnessID id.HarnessID, limit int) ([]*session.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*session.Result
	for i := len(m.resultOrder) - 1; i >= 0; i-- {
		r := m.results[m.resultOrder[i]]
		if r.HarnessID != harnessID {
			continue
		}
		cp := *r
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Checkpoint Store
// ──────────────────────────────────────────────────

// SaveCheckpoint persists a checkpoint.
func (m *Store) SaveCheckpoint(_ context.Context, cp *checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cp
	m.checkpoints[cp.ID.String()] = &c
	return nil
}

// GetCheckpoint retrieves a checkpoint by id, or ErrCheckpointNotFound.
func (m *Store) GetCheckpoint(_ context.Context, checkpointID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.checkpoints[checkpointID.String()]
	if !ok {
		return nil, harness.ErrCheckpointNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCheckpoints returns all checkpoints for a run, newest first.
func (m *Store) ListCheckpoints(_ context.Context, harnessID id.HarnessID) ([]*checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*checkpoint.Checkpoint
	for _, c := range m.checkpoints {
		if c.HarnessID != harnessID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
