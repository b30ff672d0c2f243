package harness

import "time"

// Config holds the control-loop timing configuration for a Coordinator.
type Config struct {
	// TickInterval is the pause between control-loop ticks when the loop
	// has work in flight. Keep it short relative to session latency.
	TickInterval time.Duration

	// IdleWait is the base wait when no ready work exists but workers are
	// still busy. The coordinator may back off from this base.
	IdleWait time.Duration

	// BackpressureWait is the wait applied while the scale manager reports
	// backpressure. Assignment is fully halted for its duration.
	BackpressureWait time.Duration

	// HistoryLimit caps how many recent session results are bundled into
	// a priming context.
	HistoryLimit int

	// SessionTimeout is the advisory per-session deadline. Zero disables
	// the timeout middleware. The executor contract has no interrupt
	// primitive, so executors that ignore context simply run on.
	SessionTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight sessions
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults. All waits are
// sub-second so polling never dominates session latency.
func DefaultConfig() Config {
	return Config{
		TickInterval:     250 * time.Millisecond,
		IdleWait:         500 * time.Millisecond,
		BackpressureWait: 500 * time.Millisecond,
		HistoryLimit:     10,
		SessionTimeout:   0,
		ShutdownTimeout:  30 * time.Second,
	}
}
