package loadtest_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/harness/loadtest"
	"github.com/xraph/harness/scale"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastScale(minWorkers, maxWorkers int, maxDepth float64) scale.Config {
	return scale.Config{
		MinWorkers:          minWorkers,
		MaxWorkers:          maxWorkers,
		TargetQueueDepth:    2,
		MaxQueueDepth:       maxDepth,
		WorkerStallTimeout:  time.Minute,
		HealthCheckInterval: 2 * time.Millisecond,
		ScaleUpThreshold:    3,
		ScaleDownThreshold:  0,
		ScaleCooldown:       time.Millisecond,
	}
}

func runProfile(t *testing.T, config loadtest.Config) *loadtest.Report {
	t.Helper()

	h, err := loadtest.New(config, loadtest.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := h.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	config := loadtest.DefaultConfig()
	config.Items = 0
	if _, err := loadtest.New(config); err == nil {
		t.Error("expected error for zero Items")
	}

	config = loadtest.DefaultConfig()
	config.ArrivalRate = 0
	if _, err := loadtest.New(config); err == nil {
		t.Error("expected error for zero ArrivalRate")
	}
}

func TestRunDrainsAllItems(t *testing.T) {
	t.Parallel()

	report := runProfile(t, loadtest.Config{
		Items:        30,
		ArrivalRate:  5000,
		Burst:        30,
		MinLatency:   time.Millisecond,
		MaxLatency:   3 * time.Millisecond,
		FailureRate:  0,
		Seed:         1,
		TickInterval: time.Millisecond,
		Scale:        fastScale(2, 8, 100),
	})

	if report.Sessions != 30 {
		t.Errorf("Sessions = %d, want 30", report.Sessions)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, want 0", report.Failed)
	}
	if report.Throughput <= 0 {
		t.Errorf("Throughput = %v, want positive", report.Throughput)
	}
	if report.P50Latency <= 0 || report.P95Latency < report.P50Latency {
		t.Errorf("latencies p50=%v p95=%v", report.P50Latency, report.P95Latency)
	}
	if !report.Recommendation.Adequate {
		t.Errorf("Adequate = false, reasons: %v", report.Recommendation.Reasons)
	}
}

func TestRunFlagsUndersizedPool(t *testing.T) {
	t.Parallel()

	report := runProfile(t, loadtest.Config{
		Items:        40,
		ArrivalRate:  100000,
		Burst:        40,
		MinLatency:   time.Millisecond,
		MaxLatency:   3 * time.Millisecond,
		FailureRate:  0,
		Seed:         7,
		TickInterval: time.Millisecond,
		Scale:        fastScale(1, 2, 3),
	})

	if report.Sessions != 40 {
		t.Fatalf("Sessions = %d, want 40", report.Sessions)
	}
	if report.BackpressureTicks == 0 {
		t.Error("BackpressureTicks = 0, want pressure under a 40-item burst")
	}
	if report.PeakWorkers != 2 {
		t.Errorf("PeakWorkers = %d, want 2", report.PeakWorkers)
	}
	if report.Recommendation.Adequate {
		t.Fatal("Adequate = true for a pinned pool under backpressure")
	}
	found := false
	for _, reason := range report.Recommendation.Reasons {
		if strings.Contains(reason, "MaxWorkers") {
			found = true
		}
	}
	if !found {
		t.Errorf("no MaxWorkers advice in %v", report.Recommendation.Reasons)
	}
}

func TestRunFlagsFailureMix(t *testing.T) {
	t.Parallel()

	report := runProfile(t, loadtest.Config{
		Items:        20,
		ArrivalRate:  5000,
		Burst:        20,
		MinLatency:   time.Millisecond,
		MaxLatency:   2 * time.Millisecond,
		FailureRate:  1,
		Seed:         3,
		TickInterval: time.Millisecond,
		Scale:        fastScale(2, 4, 100),
	})

	if report.Failed != 20 {
		t.Errorf("Failed = %d, want 20", report.Failed)
	}
	if report.Recommendation.Adequate {
		t.Fatal("Adequate = true with all sessions failing")
	}
	found := false
	for _, reason := range report.Recommendation.Reasons {
		if strings.Contains(reason, "success rate") {
			found = true
		}
	}
	if !found {
		t.Errorf("no failure-mix advice in %v", report.Recommendation.Reasons)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	config := loadtest.DefaultConfig()
	config.Items = 1000
	config.ArrivalRate = 1 // slow enough to outlive the context
	config.Scale = fastScale(1, 2, 100)

	h, err := loadtest.New(config, loadtest.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := h.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
