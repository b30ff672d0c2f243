// Package convoy implements named work queues consulted before the
// default ready-work query. A convoy groups external items under a
// "convoy:<name>" label; within the convoy, selection is FIFO by
// readiness unless an item's priority overrides.
package convoy

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/harness/work"
)

// Progress is the read-only completion report for one convoy.
type Progress struct {
	Name      string `json:"name"`
	Seen      int    `json:"seen"`
	Completed int    `json:"completed"`
	Remaining int    `json:"remaining"`
}

// Queue tracks one named convoy against the external work source. It
// never mutates the source; membership comes from item labels and
// completion is reported by the coordinator.
type Queue struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	readiness map[string]int // issue id -> arrival order
	next      int
	done      map[string]struct{}
}

// New creates a queue for the named convoy.
func New(name string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		name:      name,
		logger:    logger.With(slog.String("convoy", name)),
		readiness: make(map[string]int),
		done:      make(map[string]struct{}),
	}
}

// Name returns the convoy name.
func (q *Queue) Name() string { return q.name }

// NextIssue returns the next convoy member to work on, or nil with a
// nil error when the convoy has no ready work. A nil result tells the
// coordinator to fall through to default selection.
//
// Order is FIFO by when an item first appeared ready, except that a
// more urgent priority jumps the line.
func (q *Queue) NextIssue(ctx context.Context, source work.Source, scopeID string) (*work.Item, error) {
	items, err := source.GetReadyWork(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var members []*work.Item
	for _, item := range items {
		if item == nil || item.Convoy() != q.name {
			continue
		}
		if _, seen := q.readiness[item.ID]; !seen {
			q.readiness[item.ID] = q.next
			q.next++
		}
		if _, finished := q.done[item.ID]; finished {
			continue
		}
		members = append(members, item)
	}
	if len(members) == 0 {
		return nil, nil
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Priority != members[j].Priority {
			return members[i].Priority < members[j].Priority
		}
		return q.readiness[members[i].ID] < q.readiness[members[j].ID]
	})
	return members[0], nil
}

// MarkCompleted records that the coordinator finished a convoy member.
func (q *Queue) MarkCompleted(issueID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, seen := q.readiness[issueID]; !seen {
		q.readiness[issueID] = q.next
		q.next++
	}
	q.done[issueID] = struct{}{}
}

// GetProgress reports convoy completion against the source's current
// view. Items completed earlier but no longer ready still count as seen.
func (q *Queue) GetProgress(ctx context.Context, source work.Source, scopeID string) (Progress, error) {
	items, err := source.GetReadyWork(ctx, scopeID)
	if err != nil {
		return Progress{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := 0
	for _, item := range items {
		if item == nil || item.Convoy() != q.name {
			continue
		}
		if _, seen := q.readiness[item.ID]; !seen {
			q.readiness[item.ID] = q.next
			q.next++
		}
		if _, finished := q.done[item.ID]; !finished {
			remaining++
		}
	}

	return Progress{
		Name:      q.name,
		Seen:      len(q.readiness),
		Completed: len(q.done),
		Remaining: remaining,
	}, nil
}
