package redirect_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/work"
)

type fakeSource struct {
	items []*work.Item
	err   error
}

func (f *fakeSource) GetReadyWork(_ context.Context, _ string) ([]*work.Item, error) {
	return f.items, f.err
}

func (f *fakeSource) GetDependencies(_ context.Context, _ string) ([]work.Dependency, error) {
	return nil, nil
}

func (f *fakeSource) GetDependents(_ context.Context, _ string) ([]work.Dependency, error) {
	return nil, nil
}

func (f *fakeSource) UpdateStatus(_ context.Context, _, _ string) error { return nil }

func snapshotOf(t *testing.T, src *fakeSource) *redirect.Snapshot {
	t.Helper()
	snap, err := redirect.TakeSnapshot(context.Background(), src, "scope-1")
	if err != nil {
		t.Fatalf("take snapshot: %v", err)
	}
	return snap
}

func TestNoRedirectsOnIdenticalSnapshots(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
		{ID: "gt-2", Status: work.StatusOpen, Priority: 3},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{
		AssignedIssues: []string{"gt-1"},
		TopPriority:    2,
	})
	if len(res.Redirects) != 0 {
		t.Fatalf("redirects on identical snapshots: %+v", res.Redirects)
	}
	if res.ShouldPause {
		t.Fatal("unexpected pause")
	}
	if res.Snapshot == prev {
		t.Fatal("check must return a fresh snapshot")
	}
}

func TestNewUrgentIssueIsPriorityRedirect(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	src.items = append(src.items, &work.Item{ID: "gt-9", Status: work.StatusOpen, Priority: 0})

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{
		AssignedIssues: []string{"gt-1"},
		TopPriority:    2,
	})
	if len(res.Redirects) != 1 {
		t.Fatalf("redirects = %d, want 1", len(res.Redirects))
	}
	if res.Redirects[0].Kind != redirect.KindPriorityWork {
		t.Fatalf("kind = %q, want priority_work", res.Redirects[0].Kind)
	}
	if res.Redirects[0].IssueID != "gt-9" {
		t.Fatalf("issue = %q, want gt-9", res.Redirects[0].IssueID)
	}
	if redirect.RequiresImmediateAction(res.Redirects) {
		t.Fatal("new priority work must not force an immediate checkpoint")
	}
}

func TestNewLowerPriorityIssueIsNotARedirect(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 1},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	src.items = append(src.items, &work.Item{ID: "gt-9", Status: work.StatusOpen, Priority: 4})

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{
		AssignedIssues: []string{"gt-1"},
		TopPriority:    1,
	})
	if len(res.Redirects) != 0 {
		t.Fatalf("routine addition flagged: %+v", res.Redirects)
	}
}

func TestPauseLabelForcesImmediateAction(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	src.items = []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
		{ID: "gt-pause", Status: work.StatusOpen, Labels: []string{work.LabelPause}},
	}

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{})
	if !res.ShouldPause {
		t.Fatal("pause label must request a pause")
	}
	if res.PauseReason == "" {
		t.Fatal("pause reason must name the trigger")
	}
	if !redirect.RequiresImmediateAction(res.Redirects) {
		t.Fatal("pause request must force an immediate checkpoint")
	}
}

func TestAssignedIssueCancellation(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
		{ID: "gt-2", Status: work.StatusOpen, Priority: 3},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	// gt-1 cancelled in place, gt-2 vanished entirely.
	src.items = []*work.Item{
		{ID: "gt-1", Status: work.StatusCancelled, Priority: 2},
	}

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{
		AssignedIssues: []string{"gt-1", "gt-2"},
		TopPriority:    2,
	})
	if len(res.Redirects) != 2 {
		t.Fatalf("redirects = %d, want 2: %+v", len(res.Redirects), res.Redirects)
	}
	for _, r := range res.Redirects {
		if r.Kind != redirect.KindCancellation {
			t.Fatalf("kind = %q, want cancellation", r.Kind)
		}
	}
	if !redirect.RequiresImmediateAction(res.Redirects) {
		t.Fatal("cancellation must force an immediate checkpoint")
	}
}

func TestUnassignedDisappearanceIsNotARedirect(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
		{ID: "gt-2", Status: work.StatusOpen, Priority: 3},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	// gt-2 was closed by someone else but nobody here was working on it.
	src.items = src.items[:1]

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{
		AssignedIssues: []string{"gt-1"},
		TopPriority:    2,
	})
	if len(res.Redirects) != 0 {
		t.Fatalf("unassigned disappearance flagged: %+v", res.Redirects)
	}
}

func TestSourceFailureDegradesGracefully(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 2},
	}}
	d := redirect.NewDetector(slog.Default())
	prev := snapshotOf(t, src)

	src.err = errors.New("tracker unreachable")

	res := d.Check(context.Background(), prev, src, "scope-1", redirect.ActiveView{
		AssignedIssues: []string{"gt-1"},
		TopPriority:    2,
	})
	if len(res.Redirects) != 0 || res.ShouldPause {
		t.Fatal("source failure must read as no redirects this tick")
	}
	if res.Snapshot != prev {
		t.Fatal("old snapshot must be carried forward on capture failure")
	}
}

func TestFirstCheckEstablishesBaseline(t *testing.T) {
	src := &fakeSource{items: []*work.Item{
		{ID: "gt-1", Status: work.StatusOpen, Priority: 0},
	}}
	d := redirect.NewDetector(slog.Default())

	res := d.Check(context.Background(), nil, src, "scope-1", redirect.ActiveView{})
	if len(res.Redirects) != 0 {
		t.Fatalf("baseline check produced redirects: %+v", res.Redirects)
	}
	if res.Snapshot == nil {
		t.Fatal("baseline check must produce a snapshot")
	}
}
