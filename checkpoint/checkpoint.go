// Package checkpoint accumulates session outcomes between checkpoints,
// computes a rolling confidence score over recent results, and decides
// when a human-reviewable checkpoint is due.
package checkpoint

import (
	"context"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

// Checkpoint is a point-in-time progress snapshot. Read-only once created;
// HarnessState.LastCheckpointID references the newest one.
type Checkpoint struct {
	harness.Entity

	ID         id.CheckpointID          `json:"id"`
	HarnessID  id.HarnessID             `json:"harness_id"`
	Reason     string                   `json:"reason"`
	Results    []*session.Result        `json:"results"`
	Counts     map[session.Outcome]int  `json:"counts"`
	Confidence float64                  `json:"confidence"`
}

// Store persists checkpoints for later human review.
type Store interface {
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	GetCheckpoint(ctx context.Context, checkpointID id.CheckpointID) (*Checkpoint, error)
	ListCheckpoints(ctx context.Context, harnessID id.HarnessID) ([]*Checkpoint, error)
}

// outcomeCounts tallies a result slice by outcome.
func outcomeCounts(results []*session.Result) map[session.Outcome]int {
	counts := make(map[session.Outcome]int, len(results))
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

// sessionValue maps an outcome onto [0,1] for confidence scoring.
func sessionValue(o session.Outcome) float64 {
	switch {
	case o.Positive():
		return 1
	case o.Negative():
		return 0
	default:
		return 0.5
	}
}
