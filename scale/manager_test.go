package scale_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/harness/id"
	"github.com/xraph/harness/scale"
)

// fakePool is a scriptable scale.Pool.
type fakePool struct {
	mu         sync.Mutex
	size       int
	active     int
	stalled    int
	recyclable int
	spawnErr   error
	retireErr  error
	spawns     int
	retires    int
}

func (f *fakePool) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *fakePool) ActiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakePool) StalledCount(_ time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stalled
}

func (f *fakePool) RecyclableCount(_ int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recyclable
}

func (f *fakePool) SpawnWorker() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return f.spawnErr
	}
	f.size++
	f.spawns++
	return nil
}

func (f *fakePool) RetireIdleWorker() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retireErr != nil {
		return f.retireErr
	}
	f.size--
	f.retires++
	return nil
}

func testConfig() scale.Config {
	cfg := scale.DefaultConfig()
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 4
	cfg.MaxQueueDepth = 5
	cfg.ScaleUpThreshold = 2
	cfg.ScaleDownThreshold = 0.5
	cfg.ScaleCooldown = 50 * time.Millisecond
	cfg.HealthCheckInterval = 10 * time.Millisecond
	return cfg
}

func TestBackpressureTracksRatioExactly(t *testing.T) {
	pool := &fakePool{size: 1}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	m.SetPendingWork(5)
	if m.ShouldApplyBackpressure() {
		t.Fatal("depth == max must not trigger backpressure")
	}

	m.SetPendingWork(6)
	if !m.ShouldApplyBackpressure() {
		t.Fatal("depth > max must trigger backpressure")
	}

	m.SetPendingWork(4)
	if m.ShouldApplyBackpressure() {
		t.Fatal("backpressure must clear as soon as the ratio drops")
	}
}

func TestScaleUpOneStepWithCooldown(t *testing.T) {
	pool := &fakePool{size: 1}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	m.SetPendingWork(20)
	m.Evaluate(context.Background())
	m.Evaluate(context.Background())
	m.Evaluate(context.Background())

	if pool.spawns != 1 {
		t.Fatalf("spawns inside cooldown = %d, want exactly 1", pool.spawns)
	}

	time.Sleep(60 * time.Millisecond)
	m.Evaluate(context.Background())
	if pool.spawns != 2 {
		t.Fatalf("spawns after cooldown = %d, want 2", pool.spawns)
	}
}

func TestScaleUpRespectsMaxWorkers(t *testing.T) {
	cfg := testConfig()
	pool := &fakePool{size: cfg.MaxWorkers}
	m := scale.NewManager(cfg, pool, slog.Default())

	m.SetPendingWork(100)
	m.Evaluate(context.Background())
	if pool.spawns != 0 {
		t.Fatal("must not scale past max workers")
	}
}

func TestScaleDownOnlyIdleAndAboveMin(t *testing.T) {
	cfg := testConfig()
	pool := &fakePool{size: 3}
	m := scale.NewManager(cfg, pool, slog.Default())

	m.SetPendingWork(0)
	m.Evaluate(context.Background())
	if pool.retires != 1 {
		t.Fatalf("retires = %d, want 1", pool.retires)
	}

	// A busy pool refuses retirement; the decision is retried later
	// without counting as a scale operation.
	pool.retireErr = errors.New("busy")
	time.Sleep(60 * time.Millisecond)
	m.Evaluate(context.Background())
	if got := m.GetMetrics().ScaleOperations; got != 1 {
		t.Fatalf("scale operations = %d, want 1", got)
	}

	// At the minimum, no further scale-down.
	pool.retireErr = nil
	pool.size = cfg.MinWorkers
	time.Sleep(60 * time.Millisecond)
	m.Evaluate(context.Background())
	if pool.retires != 1 {
		t.Fatal("must not scale below min workers")
	}
}

func TestScaleDownHonorsTargetDepth(t *testing.T) {
	cfg := testConfig()
	cfg.ScaleDownThreshold = 2
	cfg.TargetQueueDepth = 1
	pool := &fakePool{size: 2}
	m := scale.NewManager(cfg, pool, slog.Default())

	// Depth 1.5 is under the down-threshold, but on one worker it would
	// become 3, past the target. The retire is skipped.
	m.SetPendingWork(3)
	m.Evaluate(context.Background())
	if pool.retires != 0 {
		t.Fatalf("retires = %d, want 0 when the projected depth overshoots the target", pool.retires)
	}

	// Depth 0.5 projects to exactly the target on the smaller pool.
	m.SetPendingWork(1)
	m.Evaluate(context.Background())
	if pool.retires != 1 {
		t.Fatalf("retires = %d, want 1", pool.retires)
	}
}

func TestRecordSessionCompleteIdempotent(t *testing.T) {
	pool := &fakePool{size: 1}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	workerID := id.NewWorkerID()
	m.RecordSessionStart(workerID, "gt-1")
	m.RecordSessionComplete(workerID, "gt-1", true)

	// Duplicate complete with no intervening start must not double-count.
	m.RecordSessionComplete(workerID, "gt-1", true)

	m.RecordSessionStart(workerID, "gt-2")
	m.RecordSessionComplete(workerID, "gt-2", false)

	metrics := m.GetMetrics()
	if metrics.SuccessRate != 0.5 {
		t.Fatalf("success rate = %v, want 0.5 (duplicate double-counted)", metrics.SuccessRate)
	}
}

func TestActiveNeverExceedsCurrent(t *testing.T) {
	// Even when the pool reports more active than total (a transient
	// read skew), the exported metric stays consistent.
	pool := &fakePool{size: 2, active: 2, stalled: 0}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	metrics := m.GetMetrics()
	if metrics.ActiveWorkers > metrics.CurrentWorkers {
		t.Fatalf("active %d exceeds current %d", metrics.ActiveWorkers, metrics.CurrentWorkers)
	}
}

func TestHealthRollup(t *testing.T) {
	pool := &fakePool{size: 10}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	// No completions yet: healthy.
	if h := m.GetMetrics().Health; h != scale.HealthHealthy {
		t.Fatalf("idle health = %q, want healthy", h)
	}

	// 9 of 10 succeed: still healthy.
	w := id.NewWorkerID()
	for i := range 10 {
		issue := string(rune('a' + i))
		m.RecordSessionStart(w, issue)
		m.RecordSessionComplete(w, issue, i != 0)
	}
	if h := m.GetMetrics().Health; h != scale.HealthHealthy {
		t.Fatalf("health at 0.9 success = %q, want healthy", h)
	}

	// Stalls above 10% of the pool: unhealthy.
	pool.mu.Lock()
	pool.stalled = 2
	pool.mu.Unlock()
	if h := m.GetMetrics().Health; h != scale.HealthUnhealthy {
		t.Fatalf("health with 2/10 stalled = %q, want unhealthy", h)
	}

	// One stall in a pool of 10 degrades without being unhealthy.
	pool.mu.Lock()
	pool.stalled = 1
	pool.size = 20
	pool.mu.Unlock()
	if h := m.GetMetrics().Health; h != scale.HealthDegraded {
		t.Fatalf("health with 1/20 stalled = %q, want degraded", h)
	}
}

func TestStartStopHealthLoop(t *testing.T) {
	pool := &fakePool{size: 1}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("double start: %v", err)
	}

	// Queue pressure is picked up by the background tick.
	m.SetPendingWork(50)
	time.Sleep(30 * time.Millisecond)

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("double stop: %v", err)
	}

	if pool.spawns == 0 {
		t.Fatal("health loop never evaluated scale")
	}
}

func TestLatencyPercentiles(t *testing.T) {
	pool := &fakePool{size: 1}
	m := scale.NewManager(testConfig(), pool, slog.Default())

	w := id.NewWorkerID()
	m.RecordSessionStart(w, "gt-1")
	time.Sleep(5 * time.Millisecond)
	m.RecordSessionComplete(w, "gt-1", true)

	metrics := m.GetMetrics()
	if metrics.AvgSessionDuration < 5*time.Millisecond {
		t.Fatalf("avg duration = %v, want >= 5ms", metrics.AvgSessionDuration)
	}
	if metrics.P95SessionDuration < metrics.AvgSessionDuration {
		t.Fatalf("p95 %v below avg %v with a single sample", metrics.P95SessionDuration, metrics.AvgSessionDuration)
	}
}
