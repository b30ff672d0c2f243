package harness

import (
	"context"

	"github.com/xraph/harness/id"
)

// StateStore persists harness run state so a run can be resumed after a
// process restart by reloading the same id.
type StateStore interface {
	// SaveState inserts or updates the full run state.
	SaveState(ctx context.Context, s *HarnessState) error

	// LoadState returns the state for a run id, or ErrStateNotFound.
	LoadState(ctx context.Context, harnessID id.HarnessID) (*HarnessState, error)

	// ListStates returns all persisted run states, newest first.
	ListStates(ctx context.Context) ([]*HarnessState, error)
}
