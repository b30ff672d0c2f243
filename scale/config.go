// Package scale implements the adaptive-capacity controller: queue-depth
// pressure, backpressure signalling, one-step scale decisions with a
// cooldown, stall detection, and rolling session latency/success metrics.
package scale

import "time"

// Config is the tunable capacity policy. Immutable for the run.
type Config struct {
	// MinWorkers and MaxWorkers bound the pool size.
	MinWorkers int `json:"min_workers"`
	MaxWorkers int `json:"max_workers"`

	// TargetQueueDepth is the desired pending-work-per-worker ratio. A
	// scale-down is skipped when shrinking the pool would push the ratio
	// past it.
	TargetQueueDepth float64 `json:"target_queue_depth"`

	// MaxQueueDepth is the hard backpressure bound: when the ratio
	// exceeds it, assignment must stop.
	MaxQueueDepth float64 `json:"max_queue_depth"`

	// WorkerStallTimeout marks a session as stalled once it has run this
	// long. Stalled workers are reported, never killed.
	WorkerStallTimeout time.Duration `json:"worker_stall_timeout"`

	// HealthCheckInterval is the cadence of the background health tick.
	HealthCheckInterval time.Duration `json:"health_check_interval"`

	// ScaleUpThreshold and ScaleDownThreshold are queue-depth ratios that
	// trigger adding or removing one worker.
	ScaleUpThreshold   float64 `json:"scale_up_threshold"`
	ScaleDownThreshold float64 `json:"scale_down_threshold"`

	// ScaleCooldown is the minimum gap between scale operations.
	ScaleCooldown time.Duration `json:"scale_cooldown"`

	// MaxSessionsPerWorker is a recycling signal: workers past it are
	// surfaced in metrics so operators can rotate them.
	MaxSessionsPerWorker int `json:"max_sessions_per_worker"`
}

// DefaultConfig returns the capacity policy used when none is supplied:
// 4..30 workers, 30s health ticks, 10m stall timeout.
func DefaultConfig() Config {
	return Config{
		MinWorkers:           4,
		MaxWorkers:           30,
		TargetQueueDepth:     2,
		MaxQueueDepth:        8,
		WorkerStallTimeout:   10 * time.Minute,
		HealthCheckInterval:  30 * time.Second,
		ScaleUpThreshold:     3,
		ScaleDownThreshold:   1,
		ScaleCooldown:        time.Minute,
		MaxSessionsPerWorker: 10,
	}
}
