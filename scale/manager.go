package scale

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/harness/id"
)

// Health is the rolled-up capacity health of the pool.
type Health string

const (
	// HealthHealthy means no stalls and a success rate of at least 0.8.
	HealthHealthy Health = "healthy"
	// HealthDegraded means elevated failure or stall levels.
	HealthDegraded Health = "degraded"
	// HealthUnhealthy means a success rate below 0.5 or stalls above 10%
	// of the pool.
	HealthUnhealthy Health = "unhealthy"
)

// Metrics is the live capacity state. Continuously updated by the
// manager's health tick and safe to read from the control loop.
type Metrics struct {
	CurrentWorkers     int           `json:"current_workers"`
	ActiveWorkers      int           `json:"active_workers"`
	QueueDepth         float64       `json:"queue_depth"`
	Health             Health        `json:"health"`
	AvgSessionDuration time.Duration `json:"avg_session_duration"`
	P95SessionDuration time.Duration `json:"p95_session_duration"`
	SuccessRate        float64       `json:"success_rate"`
	ScaleOperations    int           `json:"scale_operations"`
	StalledWorkers     int           `json:"stalled_workers"`
	RecyclableWorkers  int           `json:"recyclable_workers"`
}

// Pool is the subset of the worker pool the scale manager drives. The
// worker package's Pool satisfies it.
type Pool interface {
	Size() int
	ActiveCount() int
	StalledCount(timeout time.Duration) int
	RecyclableCount(maxSessions int) int
	SpawnWorker() error
	RetireIdleWorker() error
}

// Emitter receives scale lifecycle events. The ext registry satisfies it.
type Emitter interface {
	EmitScaleUp(ctx context.Context, workers int)
	EmitScaleDown(ctx context.Context, workers int)
}

// durationWindow bounds the rolling latency sample.
const durationWindow = 256

type sessionStart struct {
	at time.Time
}

// Manager polls worker health on an independent timer, computes
// queue-depth pressure, decides one-step scale operations, detects
// stalls, and exposes the backpressure signal. It never mutates
// HarnessState; the coordinator reads data back out of it.
type Manager struct {
	config  Config
	pool    Pool
	emitter Emitter
	logger  *slog.Logger

	mu          sync.RWMutex
	pending     int
	lastScaleAt time.Time
	scaleOps    int
	durations   []time.Duration
	starts      map[string]sessionStart
	completed   int
	succeeded   int

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmitter wires scale lifecycle events into an emitter.
func WithEmitter(e Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// NewManager creates a scale manager over the given pool.
func NewManager(config Config, pool Pool, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		config: config,
		pool:   pool,
		logger: logger,
		starts: make(map[string]sessionStart),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the manager's immutable capacity policy.
func (m *Manager) Config() Config { return m.config }

// Start launches the periodic health-check loop. It returns immediately.
func (m *Manager) Start(_ context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})

	m.logger.Info("scale manager starting",
		slog.Int("min_workers", m.config.MinWorkers),
		slog.Int("max_workers", m.config.MaxWorkers),
		slog.Duration("health_check_interval", m.config.HealthCheckInterval),
	)

	m.wg.Add(1)
	go m.healthLoop()

	return nil
}

// Stop cancels the health-check timer and waits for the loop to exit.
// Safe to call on every exit path, including after a panic recovery.
func (m *Manager) Stop(_ context.Context) error {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.runMu.Unlock()

	m.wg.Wait()
	m.logger.Info("scale manager stopped")
	return nil
}

func (m *Manager) healthLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Evaluate(context.Background())
		}
	}
}

// SetPendingWork records the latest observed count of ready work. The
// coordinator calls this each time it polls the source.
func (m *Manager) SetPendingWork(n int) {
	m.mu.Lock()
	m.pending = n
	m.mu.Unlock()
}

// QueueDepth returns pending ready work divided by current worker count.
func (m *Manager) QueueDepth() float64 {
	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()

	workers := m.pool.Size()
	if workers < 1 {
		workers = 1
	}
	return float64(pending) / float64(workers)
}

// ShouldApplyBackpressure reports whether the queue depth exceeds the
// hard maximum. Callers must treat a true as a hard stop on assignment,
// not a hint. No hysteresis: the signal tracks the ratio exactly.
func (m *Manager) ShouldApplyBackpressure() bool {
	return m.QueueDepth() > m.config.MaxQueueDepth
}

// Evaluate performs one scale decision: up when the ratio exceeds the
// up-threshold, down when it falls below the down-threshold, always one
// worker at a time and never inside the cooldown window. Single-step
// scaling avoids thundering-herd claims against the work source. A
// scale-down is skipped when the projected depth on the smaller pool
// would overshoot TargetQueueDepth, so retiring a worker never forces
// an immediate scale-up.
func (m *Manager) Evaluate(ctx context.Context) {
	depth := m.QueueDepth()
	workers := m.pool.Size()

	m.mu.Lock()
	inCooldown := !m.lastScaleAt.IsZero() && time.Since(m.lastScaleAt) < m.config.ScaleCooldown
	m.mu.Unlock()

	if inCooldown {
		return
	}

	switch {
	case depth > m.config.ScaleUpThreshold && workers < m.config.MaxWorkers:
		if err := m.pool.SpawnWorker(); err != nil {
			m.logger.Error("scale up failed", slog.String("error", err.Error()))
			return
		}
		m.recordScaleOp()
		m.logger.Info("scaled up",
			slog.Float64("queue_depth", depth),
			slog.Int("workers", workers+1),
		)
		if m.emitter != nil {
			m.emitter.EmitScaleUp(ctx, workers+1)
		}

	case depth < m.config.ScaleDownThreshold && workers > m.config.MinWorkers:
		if projected := depth * float64(workers) / float64(workers-1); projected > m.config.TargetQueueDepth {
			m.logger.Debug("scale down skipped",
				slog.Float64("projected_depth", projected),
				slog.Float64("target_depth", m.config.TargetQueueDepth),
			)
			return
		}
		if err := m.pool.RetireIdleWorker(); err != nil {
			// All workers busy; try again next tick.
			m.logger.Debug("scale down skipped", slog.String("error", err.Error()))
			return
		}
		m.recordScaleOp()
		m.logger.Info("scaled down",
			slog.Float64("queue_depth", depth),
			slog.Int("workers", workers-1),
		)
		if m.emitter != nil {
			m.emitter.EmitScaleDown(ctx, workers-1)
		}
	}
}

func (m *Manager) recordScaleOp() {
	m.mu.Lock()
	m.scaleOps++
	m.lastScaleAt = time.Now().UTC()
	m.mu.Unlock()
}

func startKey(workerID id.WorkerID, issueID string) string {
	return workerID.String() + "|" + issueID
}

// RecordSessionStart marks the beginning of a session for latency
// accounting.
func (m *Manager) RecordSessionStart(workerID id.WorkerID, issueID string) {
	m.mu.Lock()
	m.starts[startKey(workerID, issueID)] = sessionStart{at: time.Now().UTC()}
	m.mu.Unlock()
}

// RecordSessionComplete folds one finished session into the rolling
// latency and success-rate accounting. A completion without a matching
// start (a coordinator restart, or a duplicate call) is ignored, so
// double completes never double-count.
func (m *Manager) RecordSessionComplete(workerID id.WorkerID, issueID string, success bool) {
	key := startKey(workerID, issueID)

	m.mu.Lock()
	defer m.mu.Unlock()

	start, ok := m.starts[key]
	if !ok {
		m.logger.Debug("session complete without matching start",
			slog.String("worker_id", workerID.String()),
			slog.String("issue_id", issueID),
		)
		return
	}
	delete(m.starts, key)

	m.durations = append(m.durations, time.Since(start.at))
	if len(m.durations) > durationWindow {
		m.durations = m.durations[len(m.durations)-durationWindow:]
	}

	m.completed++
	if success {
		m.succeeded++
	}
}

// GetMetrics computes the live capacity snapshot: occupancy from the
// pool, latency percentiles over the rolling window, the success rate,
// and the health rollup. Stalled workers are excluded from the active
// capacity figure.
func (m *Manager) GetMetrics() Metrics {
	current := m.pool.Size()
	active := m.pool.ActiveCount()
	stalled := m.pool.StalledCount(m.config.WorkerStallTimeout)
	recyclable := m.pool.RecyclableCount(m.config.MaxSessionsPerWorker)

	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := Metrics{
		CurrentWorkers:    current,
		ActiveWorkers:     active - stalled,
		QueueDepth:        m.queueDepthLocked(current),
		ScaleOperations:   m.scaleOps,
		StalledWorkers:    stalled,
		RecyclableWorkers: recyclable,
	}
	if metrics.ActiveWorkers < 0 {
		metrics.ActiveWorkers = 0
	}

	if len(m.durations) > 0 {
		var total time.Duration
		sorted := make([]time.Duration, len(m.durations))
		copy(sorted, m.durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for _, d := range sorted {
			total += d
		}
		metrics.AvgSessionDuration = total / time.Duration(len(sorted))
		metrics.P95SessionDuration = sorted[int(0.95*float64(len(sorted)-1))]
	}

	if m.completed > 0 {
		metrics.SuccessRate = float64(m.succeeded) / float64(m.completed)
	} else {
		metrics.SuccessRate = 1
	}

	metrics.Health = rollupHealth(metrics, current)
	return metrics
}

func (m *Manager) queueDepthLocked(workers int) float64 {
	if workers < 1 {
		workers = 1
	}
	return float64(m.pending) / float64(workers)
}

// rollupHealth: healthy when no stalls and success ≥ 0.8; unhealthy when
// success < 0.5 or stalls exceed 10% of the pool; degraded otherwise.
func rollupHealth(metrics Metrics, poolSize int) Health {
	if metrics.SuccessRate < 0.5 {
		return HealthUnhealthy
	}
	if poolSize > 0 && float64(metrics.StalledWorkers) > 0.1*float64(poolSize) {
		return HealthUnhealthy
	}
	if metrics.StalledWorkers == 0 && metrics.SuccessRate >= 0.8 {
		return HealthHealthy
	}
	return HealthDegraded
}
