package harness_test

import (
	"errors"
	"testing"

	"github.com/xraph/harness"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from harness.Status
		to   harness.Status
		ok   bool
	}{
		{"running to paused", harness.StatusRunning, harness.StatusPaused, true},
		{"running to completed", harness.StatusRunning, harness.StatusCompleted, true},
		{"running to failed", harness.StatusRunning, harness.StatusFailed, true},
		{"paused to running", harness.StatusPaused, harness.StatusRunning, true},
		{"paused to completed", harness.StatusPaused, harness.StatusCompleted, true},
		{"paused to failed", harness.StatusPaused, harness.StatusFailed, true},
		{"completed to running", harness.StatusCompleted, harness.StatusRunning, false},
		{"completed to paused", harness.StatusCompleted, harness.StatusPaused, false},
		{"failed to running", harness.StatusFailed, harness.StatusRunning, false},
		{"failed to paused", harness.StatusFailed, harness.StatusPaused, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			st := harness.NewState(harness.ModeWorkflow, harness.DefaultCheckpointPolicy())
			st.Status = tc.from

			err := st.Transition(tc.to)
			if tc.ok && err != nil {
				t.Fatalf("Transition(%s → %s): %v", tc.from, tc.to, err)
			}
			if !tc.ok {
				if !errors.Is(err, harness.ErrInvalidTransition) {
					t.Fatalf("Transition(%s → %s) = %v, want ErrInvalidTransition", tc.from, tc.to, err)
				}
				if st.Status != tc.from {
					t.Errorf("status mutated to %s on rejected transition", st.Status)
				}
			}
		})
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	t.Parallel()

	st := harness.NewState(harness.ModeWorkflow, harness.DefaultCheckpointPolicy())
	if err := st.Transition(harness.StatusRunning); err != nil {
		t.Fatalf("self transition: %v", err)
	}
}

func TestPauseRecordsReason(t *testing.T) {
	t.Parallel()

	st := harness.NewState(harness.ModePlatform, harness.DefaultCheckpointPolicy())
	if err := st.Pause("confidence 0.30 below threshold 0.50"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if st.Status != harness.StatusPaused {
		t.Errorf("Status = %s, want paused", st.Status)
	}
	if st.PauseReason != "confidence 0.30 below threshold 0.50" {
		t.Errorf("PauseReason = %q", st.PauseReason)
	}

	if err := st.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st.Status != harness.StatusRunning {
		t.Errorf("Status = %s, want running", st.Status)
	}
	if st.PauseReason != "" {
		t.Errorf("PauseReason = %q, want cleared", st.PauseReason)
	}
}

func TestPauseFromTerminalRejected(t *testing.T) {
	t.Parallel()

	st := harness.NewState(harness.ModeWorkflow, harness.DefaultCheckpointPolicy())
	if err := st.Transition(harness.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := st.Pause("too late"); !errors.Is(err, harness.ErrInvalidTransition) {
		t.Fatalf("Pause after completed = %v, want ErrInvalidTransition", err)
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	if harness.StatusRunning.Terminal() || harness.StatusPaused.Terminal() {
		t.Error("running/paused must not be terminal")
	}
	if !harness.StatusCompleted.Terminal() || !harness.StatusFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}
