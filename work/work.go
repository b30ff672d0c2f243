// Package work defines the contracts for the external work source: the
// issue tracker that owns work items, their dependency graph, and their
// status. The harness never reimplements the tracker; it consumes this
// narrow interface and only ever transitions item status.
package work

import (
	"context"
	"strings"
)

// Status values the coordinator may write back to the source.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusClosed     = "closed"
	StatusCancelled  = "cancelled"
)

// Labels with harness-level meaning on external items.
const (
	// LabelPause on any item is an external request to pause the run.
	LabelPause = "harness:pause"

	// LabelConvoyPrefix marks items as members of a named convoy, e.g.
	// "convoy:payments-cutover".
	LabelConvoyPrefix = "convoy:"
)

// Item is one external, independently tracked unit of work. Priority is
// ordinal with lower values more urgent (0 is critical). Content is owned
// by the source; the harness only reads it.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Labels      []string `json:"labels,omitempty"`
	Priority    int      `json:"priority"`
}

// HasLabel reports whether the item carries the given label.
func (it *Item) HasLabel(name string) bool {
	for _, l := range it.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// Convoy returns the convoy name from a "convoy:" label, or "" when the
// item belongs to no convoy.
func (it *Item) Convoy() string {
	for _, l := range it.Labels {
		if strings.HasPrefix(l, LabelConvoyPrefix) {
			return strings.TrimPrefix(l, LabelConvoyPrefix)
		}
	}
	return ""
}

// Dependency is one edge in the work graph.
type Dependency struct {
	IssueID   string `json:"issue_id"`
	DependsOn string `json:"depends_on"`
	Type      string `json:"type,omitempty"`
}

// Source is the work source adapter. Implementations wrap the external
// issue tracker. All methods must be safe for concurrent use; the harness
// treats the source as a read-mostly, independently-mutating system and
// never locks it.
type Source interface {
	// GetReadyWork returns claimable items in the source's own order.
	// Prioritization across non-convoy work is the source's job.
	GetReadyWork(ctx context.Context, scopeID string) ([]*Item, error)

	// GetDependencies returns the edges the given issue depends on.
	GetDependencies(ctx context.Context, issueID string) ([]Dependency, error)

	// GetDependents returns the edges that depend on the given issue.
	GetDependents(ctx context.Context, issueID string) ([]Dependency, error)

	// UpdateStatus transitions an item's status. A rejection (for example
	// the item was claimed elsewhere) is an error the caller treats as a
	// recoverable claim failure.
	UpdateStatus(ctx context.Context, issueID, newStatus string) error
}
