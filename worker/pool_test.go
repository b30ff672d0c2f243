package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
	"github.com/xraph/harness/worker"
)

func setupTestPool(t *testing.T, exec session.Executor) (*worker.Pool, *fakeSource) {
	t.Helper()
	src := newFakeSource()
	pool := worker.NewPool(func() *worker.Worker {
		return worker.New(src, exec, slog.Default())
	}, slog.Default())
	return pool, src
}

func TestPoolAddRemove(t *testing.T) {
	pool, _ := setupTestPool(t, &fakeExecutor{result: &session.Result{Outcome: session.OutcomeSuccess}})

	w := pool.AddWorker()
	if pool.Size() != 1 {
		t.Fatalf("size = %d, want 1", pool.Size())
	}

	if err := pool.RemoveWorker(w.ID()); err != nil {
		t.Fatalf("remove idle worker: %v", err)
	}
	if pool.Size() != 0 {
		t.Fatalf("size after remove = %d, want 0", pool.Size())
	}

	if err := pool.RemoveWorker(w.ID()); !errors.Is(err, harness.ErrWorkerNotFound) {
		t.Fatalf("remove missing worker error = %v, want ErrWorkerNotFound", err)
	}
}

func TestPoolRefusesRemovingBusyWorker(t *testing.T) {
	pool, _ := setupTestPool(t, &fakeExecutor{result: &session.Result{Outcome: session.OutcomeSuccess}})
	w := pool.AddWorker()

	if !w.ClaimWork(context.Background(), &work.Item{ID: "gt-1"}) {
		t.Fatal("claim failed")
	}

	if err := pool.RemoveWorker(w.ID()); !errors.Is(err, harness.ErrWorkerBusy) {
		t.Fatalf("remove busy worker error = %v, want ErrWorkerBusy", err)
	}

	w.Reset()
	if err := pool.RemoveWorker(w.ID()); err != nil {
		t.Fatalf("remove after reset: %v", err)
	}
}

func TestPoolAvailable(t *testing.T) {
	pool, _ := setupTestPool(t, &fakeExecutor{result: &session.Result{Outcome: session.OutcomeSuccess}})

	if pool.Available() != nil {
		t.Fatal("empty pool should have no available worker")
	}

	w1 := pool.AddWorker()
	w2 := pool.AddWorker()

	if got := pool.Available(); got != w1 {
		t.Fatal("expected first idle worker")
	}

	if !w1.ClaimWork(context.Background(), &work.Item{ID: "gt-1"}) {
		t.Fatal("claim failed")
	}
	if got := pool.Available(); got != w2 {
		t.Fatal("expected second worker once first is busy")
	}

	if !w2.ClaimWork(context.Background(), &work.Item{ID: "gt-2"}) {
		t.Fatal("claim failed")
	}
	if pool.Available() != nil {
		t.Fatal("saturated pool should have no available worker")
	}
}

func TestPoolAvailableReservesAgainstRetire(t *testing.T) {
	pool, _ := setupTestPool(t, &fakeExecutor{result: &session.Result{Outcome: session.OutcomeSuccess}})
	w := pool.AddWorker()

	if got := pool.Available(); got != w {
		t.Fatal("expected the only worker")
	}

	// A handed-out worker must not be retired before its claim lands,
	// or the session would execute on a worker outside the pool.
	if err := pool.RetireIdleWorker(); !errors.Is(err, harness.ErrWorkerBusy) {
		t.Fatalf("retire of a handed-out worker = %v, want ErrWorkerBusy", err)
	}
	if !w.ClaimWork(context.Background(), &work.Item{ID: "gt-1"}) {
		t.Fatal("claim after hand-out failed")
	}
	if pool.Size() != 1 {
		t.Fatalf("size = %d, want 1", pool.Size())
	}

	// An unused hand-out is released by Reset and becomes retirable.
	w.Reset()
	if got := pool.Available(); got != w {
		t.Fatal("reset worker should be handed out again")
	}
	w.Reset()
	if err := pool.RetireIdleWorker(); err != nil {
		t.Fatalf("retire after release: %v", err)
	}
}

func TestPoolRetireIdleWorker(t *testing.T) {
	pool, _ := setupTestPool(t, &fakeExecutor{result: &session.Result{Outcome: session.OutcomeSuccess}})
	w1 := pool.AddWorker()
	pool.AddWorker()

	if !w1.ClaimWork(context.Background(), &work.Item{ID: "gt-1"}) {
		t.Fatal("claim failed")
	}

	// Retire must pick the idle worker, not the busy one.
	if err := pool.RetireIdleWorker(); err != nil {
		t.Fatalf("retire idle: %v", err)
	}
	if pool.Size() != 1 {
		t.Fatalf("size = %d, want 1", pool.Size())
	}
	if _, ok := pool.Get(w1.ID()); !ok {
		t.Fatal("busy worker was retired")
	}

	if err := pool.RetireIdleWorker(); !errors.Is(err, harness.ErrWorkerBusy) {
		t.Fatalf("retire with only busy workers = %v, want ErrWorkerBusy", err)
	}
}

func TestPoolMetricsAndStalls(t *testing.T) {
	pool, _ := setupTestPool(t, &fakeExecutor{
		result: &session.Result{Outcome: session.OutcomeSuccess},
		delay:  50 * time.Millisecond,
	})
	w := pool.AddWorker()
	pool.AddWorker()

	if !w.ClaimWork(context.Background(), &work.Item{ID: "gt-1"}) {
		t.Fatal("claim failed")
	}

	done := make(chan struct{})
	go func() {
		w.Execute(context.Background(), &session.PrimingContext{Item: &work.Item{ID: "gt-1"}})
		close(done)
	}()

	// Wait until the session is visibly executing.
	deadline := time.After(time.Second)
	for {
		if _, ok := w.SessionStartedAt(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session never started")
		case <-time.After(time.Millisecond):
		}
	}

	m := pool.GetMetrics()
	if m.TotalWorkers != 2 || m.ActiveWorkers != 1 || m.IdleWorkers != 1 {
		t.Fatalf("metrics = %+v, want 2 total / 1 active / 1 idle", m)
	}

	if n := pool.StalledCount(time.Nanosecond); n != 1 {
		t.Fatalf("stalled with tiny timeout = %d, want 1", n)
	}
	if n := pool.StalledCount(time.Hour); n != 0 {
		t.Fatalf("stalled with huge timeout = %d, want 0", n)
	}

	<-done
	if m := pool.GetMetrics(); m.SessionsExecuted != 1 {
		t.Fatalf("sessions executed = %d, want 1", m.SessionsExecuted)
	}
}
