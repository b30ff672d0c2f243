package loadtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/harness/scale"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/work"
	"github.com/xraph/harness/worker"
)

// Config shapes one load run.
type Config struct {
	// Items is the total number of synthetic work items to feed.
	Items int

	// ArrivalRate paces item arrivals, in items per second. Burst is
	// the token-bucket burst size.
	ArrivalRate float64
	Burst       int

	// MinLatency and MaxLatency bound the simulated session duration.
	MinLatency time.Duration
	MaxLatency time.Duration

	// FailureRate is the probability in [0,1] that a session fails.
	FailureRate float64

	// Seed makes latency and failure sampling reproducible.
	Seed int64

	// TickInterval is the drive-loop cadence.
	TickInterval time.Duration

	// Scale is the capacity policy under test.
	Scale scale.Config
}

// DefaultConfig returns a short smoke-load profile.
func DefaultConfig() Config {
	return Config{
		Items:        200,
		ArrivalRate:  50,
		Burst:        10,
		MinLatency:   20 * time.Millisecond,
		MaxLatency:   120 * time.Millisecond,
		FailureRate:  0.05,
		Seed:         1,
		TickInterval: 5 * time.Millisecond,
		Scale:        scale.DefaultConfig(),
	}
}

// Report summarizes one load run.
type Report struct {
	Duration   time.Duration `json:"duration"`
	Sessions   int           `json:"sessions"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Throughput float64       `json:"throughput"` // sessions per second

	P50Latency time.Duration `json:"p50_latency"`
	P95Latency time.Duration `json:"p95_latency"`

	PeakWorkers       int           `json:"peak_workers"`
	BackpressureTicks int           `json:"backpressure_ticks"`
	Scale             scale.Metrics `json:"scale"`

	Recommendation Recommendation `json:"recommendation"`
}

// Recommendation is the capacity verdict derived from a run. Adequate
// means the profile handled the load; Reasons name what to change when
// it did not.
type Recommendation struct {
	Adequate bool     `json:"adequate"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Recommendation thresholds.
const (
	// minSuccessRate below which the failure mix, not capacity, is the
	// bottleneck.
	minSuccessRate = 0.90

	// stallMargin flags p95 session latency that consumes more than
	// this fraction of the stall timeout.
	stallMargin = 0.5
)

// Harness drives synthetic load through a real worker pool and scale
// manager using the production contracts.
type Harness struct {
	config Config
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the harness logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// New builds a load harness for the given profile.
func New(config Config, opts ...Option) (*Harness, error) {
	if config.Items <= 0 {
		return nil, fmt.Errorf("loadtest: Items must be positive, got %d", config.Items)
	}
	if config.ArrivalRate <= 0 {
		return nil, fmt.Errorf("loadtest: ArrivalRate must be positive, got %v", config.ArrivalRate)
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 5 * time.Millisecond
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	h := &Harness{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("component", "loadtest"))
	return h, nil
}

// Run feeds the configured load and blocks until every session has
// completed or the context is cancelled.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	source := NewSyntheticSource()
	executor := NewSyntheticExecutor(h.config.MinLatency, h.config.MaxLatency, h.config.FailureRate, h.config.Seed)

	pool := worker.NewPool(func() *worker.Worker {
		return worker.New(source, executor, h.logger)
	}, h.logger)
	for pool.Size() < h.config.Scale.MinWorkers {
		pool.AddWorker()
	}

	scaler := scale.NewManager(h.config.Scale, pool, h.logger)
	if err := scaler.Start(ctx); err != nil {
		return nil, fmt.Errorf("loadtest: start scale manager: %w", err)
	}
	defer scaler.Stop(context.Background()) //nolint:errcheck

	go h.feed(ctx, source)

	h.logger.Info("load run starting",
		slog.Int("items", h.config.Items),
		slog.Float64("arrival_rate", h.config.ArrivalRate),
		slog.Int("min_workers", h.config.Scale.MinWorkers),
		slog.Int("max_workers", h.config.Scale.MaxWorkers),
	)

	report, err := h.drive(ctx, source, pool, scaler)
	if err != nil {
		return nil, err
	}

	h.logger.Info("load run finished",
		slog.Duration("duration", report.Duration),
		slog.Float64("throughput", report.Throughput),
		slog.Duration("p95_latency", report.P95Latency),
		slog.Int("peak_workers", report.PeakWorkers),
		slog.Int("scale_operations", report.Scale.ScaleOperations),
	)
	return report, nil
}

// feed offers items at the configured arrival rate.
func (h *Harness) feed(ctx context.Context, source *SyntheticSource) {
	limiter := rate.NewLimiter(rate.Limit(h.config.ArrivalRate), h.config.Burst)
	for i := range h.config.Items {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		source.Offer(&work.Item{
			ID:       fmt.Sprintf("load-%d", i+1),
			Title:    fmt.Sprintf("synthetic item %d", i+1),
			Status:   work.StatusOpen,
			Priority: 2,
		})
	}
}

// drive is the assignment loop: claim ready items onto available
// workers, honor backpressure, and fold completions until every fed
// item has a result.
func (h *Harness) drive(ctx context.Context, source *SyntheticSource, pool *worker.Pool, scaler *scale.Manager) (*Report, error) {
	started := time.Now()
	completions := make(chan *session.Result, h.config.Scale.MaxWorkers+1)

	var (
		durations         []time.Duration
		succeeded, failed int
		inFlight          int
		peakWorkers       = pool.Size()
		backpressureTicks int
	)

	fold := func(res *session.Result) {
		inFlight--
		durations = append(durations, res.Duration)
		success := res.Outcome.Positive()
		if success {
			succeeded++
		} else {
			failed++
		}
		scaler.RecordSessionComplete(res.WorkerID, res.IssueID, success)
		// Synthetic items never retry.
		if err := source.UpdateStatus(ctx, res.IssueID, work.StatusClosed); err != nil {
			h.logger.Warn("close synthetic item", slog.String("issue", res.IssueID), slog.Any("error", err))
		}
	}

	for succeeded+failed < h.config.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Non-blocking drain first so freed workers are visible below.
	drain:
		for {
			select {
			case res := <-completions:
				fold(res)
			default:
				break drain
			}
		}

		ready, err := source.GetReadyWork(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("loadtest: ready work: %w", err)
		}
		scaler.SetPendingWork(len(ready))

		if size := pool.Size(); size > peakWorkers {
			peakWorkers = size
		}

		if scaler.ShouldApplyBackpressure() {
			backpressureTicks++
			if inFlight > 0 {
				h.sleep(ctx, completions, fold)
				continue
			}
			// Nothing in flight can relieve the pressure. Keep
			// assigning so the run terminates; the report flags the
			// policy instead.
		}

		next := 0
		for next < len(ready) {
			w := pool.Available()
			if w == nil {
				break
			}
			item := ready[next]
			next++
			if !w.ClaimWork(ctx, item) {
				continue
			}
			scaler.RecordSessionStart(w.ID(), item.ID)
			inFlight++
			pc := &session.PrimingContext{
				Item: item,
				Goal: "synthetic load session for " + item.ID,
			}
			go func(w *worker.Worker, pc *session.PrimingContext) {
				completions <- w.Execute(ctx, pc)
			}(w, pc)
		}

		if inFlight > 0 {
			// Prefer joining a completion over sleeping blind.
			select {
			case res := <-completions:
				fold(res)
			case <-time.After(h.config.TickInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		h.sleep(ctx, completions, fold)
	}

	elapsed := time.Since(started)
	report := &Report{
		Duration:          elapsed,
		Sessions:          succeeded + failed,
		Succeeded:         succeeded,
		Failed:            failed,
		Throughput:        float64(succeeded+failed) / elapsed.Seconds(),
		P50Latency:        percentile(durations, 0.50),
		P95Latency:        percentile(durations, 0.95),
		PeakWorkers:       peakWorkers,
		BackpressureTicks: backpressureTicks,
		Scale:             scaler.GetMetrics(),
	}
	report.Recommendation = h.recommend(report)
	return report, nil
}

func (h *Harness) sleep(ctx context.Context, completions chan *session.Result, fold func(*session.Result)) {
	select {
	case res := <-completions:
		fold(res)
	case <-time.After(h.config.TickInterval):
	case <-ctx.Done():
	}
}

// recommend derives capacity advice from the run.
func (h *Harness) recommend(r *Report) Recommendation {
	var reasons []string

	if r.PeakWorkers >= h.config.Scale.MaxWorkers && r.BackpressureTicks > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"pool pinned at MaxWorkers=%d while backpressure held for %d ticks; raise MaxWorkers",
			h.config.Scale.MaxWorkers, r.BackpressureTicks))
	}
	if stall := h.config.Scale.WorkerStallTimeout; stall > 0 &&
		float64(r.P95Latency) > float64(stall)*stallMargin {
		reasons = append(reasons, fmt.Sprintf(
			"p95 session latency %v exceeds %.0f%% of WorkerStallTimeout %v; raise the timeout or shrink sessions",
			r.P95Latency, stallMargin*100, stall))
	}
	if r.Sessions > 0 {
		if successRate := float64(r.Succeeded) / float64(r.Sessions); successRate < minSuccessRate {
			reasons = append(reasons, fmt.Sprintf(
				"success rate %.2f below %.2f; capacity tuning will not help until the failure mix improves",
				successRate, minSuccessRate))
		}
	}

	return Recommendation{Adequate: len(reasons) == 0, Reasons: reasons}
}

// percentile returns the p-th percentile of the sample, zero when empty.
func percentile(sample []time.Duration, p float64) time.Duration {
	if len(sample) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(sample))
	copy(sorted, sample)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
