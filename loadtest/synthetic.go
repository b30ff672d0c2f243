package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
)

// ──────────────────────────────────────────────────
// Synthetic work source
// ──────────────────────────────────────────────────

// SyntheticSource is an in-memory work.Source fed by the load harness.
// Items become visible to GetReadyWork as the arrival pacer admits them.
type SyntheticSource struct {
	mu    sync.Mutex
	items map[string]*work.Item
	order []string
}

var _ work.Source = (*SyntheticSource)(nil)

// NewSyntheticSource returns an empty source.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{items: make(map[string]*work.Item)}
}

// Offer makes an item claimable.
func (s *SyntheticSource) Offer(item *work.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Status == "" {
		item.Status = work.StatusOpen
	}
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

// GetReadyWork returns the open backlog in arrival order.
func (s *SyntheticSource) GetReadyWork(_ context.Context, _ string) ([]*work.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*work.Item
	for _, key := range s.order {
		if it := s.items[key]; it.Status == work.StatusOpen {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetDependencies reports no edges; synthetic items are independent.
func (s *SyntheticSource) GetDependencies(_ context.Context, _ string) ([]work.Dependency, error) {
	return nil, nil
}

// GetDependents reports no edges.
func (s *SyntheticSource) GetDependents(_ context.Context, _ string) ([]work.Dependency, error) {
	return nil, nil
}

// UpdateStatus mutates a synthetic item's status.
func (s *SyntheticSource) UpdateStatus(_ context.Context, issueID, newStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[issueID]
	if !ok {
		return fmt.Errorf("loadtest: unknown issue %s", issueID)
	}
	it.Status = newStatus
	return nil
}

// ──────────────────────────────────────────────────
// Synthetic executor
// ──────────────────────────────────────────────────

// SyntheticExecutor simulates sessions with a configurable latency
// range and failure probability. Safe for concurrent workers.
type SyntheticExecutor struct {
	minLatency time.Duration
	maxLatency time.Duration
	failRate   float64

	mu  sync.Mutex
	rng *rand.Rand
}

var _ session.Executor = (*SyntheticExecutor)(nil)

// NewSyntheticExecutor builds an executor for the given latency range
// and failure rate. The seed makes a run reproducible.
func NewSyntheticExecutor(minLatency, maxLatency time.Duration, failRate float64, seed int64) *SyntheticExecutor {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &SyntheticExecutor{
		minLatency: minLatency,
		maxLatency: maxLatency,
		failRate:   failRate,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Execute sleeps for a sampled latency and returns the sampled outcome.
func (e *SyntheticExecutor) Execute(ctx context.Context, pc *session.PrimingContext) (*session.Result, error) {
	latency, failed := e.sample()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	outcome := session.OutcomeSuccess
	summary := "synthetic session completed"
	if failed {
		outcome = session.OutcomeFailure
		summary = "synthetic session failed"
	}
	return &session.Result{
		ID:      id.NewSessionID(),
		Outcome: outcome,
		Summary: summary + ": " + pc.Item.ID,
	}, nil
}

func (e *SyntheticExecutor) sample() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	latency := e.minLatency
	if span := e.maxLatency - e.minLatency; span > 0 {
		latency += time.Duration(e.rng.Int63n(int64(span)))
	}
	return latency, e.rng.Float64() < e.failRate
}
