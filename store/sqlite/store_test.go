package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/session"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "harness.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func testResult(harnessID id.HarnessID, issueID string, outcome session.Outcome) *session.Result {
	return &session.Result{
		Entity:    harness.NewEntity(),
		ID:        id.NewSessionID(),
		HarnessID: harnessID,
		IssueID:   issueID,
		WorkerID:  id.NewWorkerID(),
		Outcome:   outcome,
		Summary:   "implemented " + issueID,
		Duration:  90 * time.Second,
	}
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	st := harness.NewState(harness.ModeWorkflow, harness.DefaultCheckpointPolicy())
	st.SessionsCompleted = 3
	st.FeaturesTotal = 10
	st.PauseReason = "low confidence"
	st.LastCheckpointID = id.NewCheckpointID()
	st.BranchRef = "harness/run-1"

	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	got, err := s.LoadState(ctx, st.ID)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.ID != st.ID {
		t.Errorf("ID = %v, want %v", got.ID, st.ID)
	}
	if got.Mode != harness.ModeWorkflow || got.Status != harness.StatusRunning {
		t.Errorf("mode/status = %v/%v", got.Mode, got.Status)
	}
	if got.SessionsCompleted != 3 || got.FeaturesTotal != 10 {
		t.Errorf("counters = %d/%d, want 3/10", got.SessionsCompleted, got.FeaturesTotal)
	}
	if got.PauseReason != "low confidence" {
		t.Errorf("PauseReason = %q", got.PauseReason)
	}
	if got.LastCheckpointID != st.LastCheckpointID {
		t.Errorf("LastCheckpointID = %v, want %v", got.LastCheckpointID, st.LastCheckpointID)
	}
	if got.BranchRef != "harness/run-1" {
		t.Errorf("BranchRef = %q", got.BranchRef)
	}
	if got.CheckpointPolicy != st.CheckpointPolicy {
		t.Errorf("CheckpointPolicy = %+v, want %+v", got.CheckpointPolicy, st.CheckpointPolicy)
	}
	if !got.CreatedAt.Equal(st.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, st.CreatedAt)
	}
}

func TestLoadStateNotFound(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	_, err := s.LoadState(context.Background(), id.NewHarnessID())
	if !errors.Is(err, harness.ErrStateNotFound) {
		t.Fatalf("err = %v, want ErrStateNotFound", err)
	}
}

func TestSaveStateUpserts(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	st := harness.NewState(harness.ModePlatform, harness.DefaultCheckpointPolicy())
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	if err := st.Pause("redirect pending"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	st.SessionsCompleted = 7
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState update: %v", err)
	}

	got, err := s.LoadState(ctx, st.ID)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.Status != harness.StatusPaused || got.SessionsCompleted != 7 {
		t.Errorf("got %v/%d, want paused/7", got.Status, got.SessionsCompleted)
	}

	all, err := s.ListStates(ctx)
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(states) = %d, want 1", len(all))
	}
}

func TestListStatesNewestFirst(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []id.HarnessID
	for i := 0; i < 3; i++ {
		st := harness.NewState(harness.ModeWorkflow, harness.DefaultCheckpointPolicy())
		st.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		st.UpdatedAt = st.CreatedAt
		if err := s.SaveState(ctx, st); err != nil {
			t.Fatalf("SaveState: %v", err)
		}
		ids = append(ids, st.ID)
	}

	all, err := s.ListStates(ctx)
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(states) = %d, want 3", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("order = %v, %v, %v; want newest first", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestSaveResultIdempotent(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	harnessID := id.NewHarnessID()
	res := testResult(harnessID, "gt-1", session.OutcomeSuccess)

	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	res.Outcome = session.OutcomePartial
	res.Touch()
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("SaveResult again: %v", err)
	}

	got, err := s.ListResults(ctx, harnessID, 0)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(got))
	}
	if got[0].Outcome != session.OutcomePartial {
		t.Errorf("Outcome = %v, want partial", got[0].Outcome)
	}
	if got[0].Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", got[0].Duration)
	}
}

func TestListResultsScopedAndLimited(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	mine := id.NewHarnessID()
	other := id.NewHarnessID()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		res := testResult(mine, "gt-mine", session.OutcomeSuccess)
		res.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		res.UpdatedAt = res.CreatedAt
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	if err := s.SaveResult(ctx, testResult(other, "gt-other", session.OutcomeFailure)); err != nil {
		t.Fatalf("SaveResult other: %v", err)
	}

	got, err := s.ListResults(ctx, mine, 2)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	if !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Errorf("results not newest first: %v then %v", got[0].CreatedAt, got[1].CreatedAt)
	}
	for _, res := range got {
		if res.HarnessID != mine {
			t.Errorf("result %v leaked from another run", res.ID)
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	harnessID := id.NewHarnessID()
	cp := &checkpoint.Checkpoint{
		Entity:    harness.NewEntity(),
		ID:        id.NewCheckpointID(),
		HarnessID: harnessID,
		Reason:    "interval",
		Results: []*session.Result{
			testResult(harnessID, "gt-1", session.OutcomeSuccess),
			testResult(harnessID, "gt-2", session.OutcomeFailure),
		},
		Counts:     map[session.Outcome]int{session.OutcomeSuccess: 1, session.OutcomeFailure: 1},
		Confidence: 0.5,
	}

	if err := s.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	got, err := s.GetCheckpoint(ctx, cp.ID)
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if got.HarnessID != harnessID || got.Reason != "interval" {
		t.Errorf("got %v/%q", got.HarnessID, got.Reason)
	}
	if len(got.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(got.Results))
	}
	if got.Counts[session.OutcomeSuccess] != 1 || got.Counts[session.OutcomeFailure] != 1 {
		t.Errorf("Counts = %v", got.Counts)
	}
	if got.Confidence != cp.Confidence {
		t.Errorf("Confidence = %v, want %v", got.Confidence, cp.Confidence)
	}
}

func TestGetCheckpointNotFound(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	_, err := s.GetCheckpoint(context.Background(), id.NewCheckpointID())
	if !errors.Is(err, harness.ErrCheckpointNotFound) {
		t.Fatalf("err = %v, want ErrCheckpointNotFound", err)
	}
}

func TestListCheckpointsScoped(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()

	mine := id.NewHarnessID()
	other := id.NewHarnessID()

	base := time.Now().UTC().Add(-time.Hour)
	var newest id.CheckpointID
	for i := 0; i < 2; i++ {
		cp := &checkpoint.Checkpoint{
			Entity:    harness.NewEntity(),
			ID:        id.NewCheckpointID(),
			HarnessID: mine,
			Reason:    "interval",
		}
		cp.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		cp.UpdatedAt = cp.CreatedAt
		if err := s.SaveCheckpoint(ctx, cp); err != nil {
			t.Fatalf("SaveCheckpoint: %v", err)
		}
		newest = cp.ID
	}
	otherCP := &checkpoint.Checkpoint{
		Entity:    harness.NewEntity(),
		ID:        id.NewCheckpointID(),
		HarnessID: other,
		Reason:    "forced",
	}
	if err := s.SaveCheckpoint(ctx, otherCP); err != nil {
		t.Fatalf("SaveCheckpoint other: %v", err)
	}

	got, err := s.ListCheckpoints(ctx, mine)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(checkpoints) = %d, want 2", len(got))
	}
	if got[0].ID != newest {
		t.Errorf("first = %v, want %v", got[0].ID, newest)
	}
}
