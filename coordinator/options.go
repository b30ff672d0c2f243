package coordinator

import (
	"log/slog"

	"github.com/xraph/harness"
	"github.com/xraph/harness/backoff"
	"github.com/xraph/harness/ext"
	mw "github.com/xraph/harness/middleware"
	"github.com/xraph/harness/observer"
	"github.com/xraph/harness/scale"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used by the coordinator and every component
// it constructs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithConfig replaces the control-loop timing configuration.
func WithConfig(config harness.Config) Option {
	return func(c *Coordinator) {
		c.config = config
	}
}

// WithScopeID sets the work-source scope queried for ready work.
func WithScopeID(scopeID string) Option {
	return func(c *Coordinator) {
		c.scopeID = scopeID
	}
}

// WithMode sets the harness mode recorded on the run state.
func WithMode(mode harness.Mode) Option {
	return func(c *Coordinator) {
		c.mode = mode
	}
}

// WithScaleConfig replaces the adaptive-capacity policy.
func WithScaleConfig(config scale.Config) Option {
	return func(c *Coordinator) {
		c.scaleConfig = config
	}
}

// WithCheckpointPolicy replaces the checkpoint cadence and confidence
// policy.
func WithCheckpointPolicy(policy harness.CheckpointPolicy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithConvoy activates convoy-first issue selection for the named convoy.
func WithConvoy(name string) Option {
	return func(c *Coordinator) {
		c.convoyName = name
	}
}

// WithObserver attaches a monitoring observer; the loop takes one
// non-blocking snapshot per tick.
func WithObserver(obs *observer.Observer) Option {
	return func(c *Coordinator) {
		c.obs = obs
	}
}

// WithExtension registers a lifecycle hook extension.
func WithExtension(e ext.Extension) Option {
	return func(c *Coordinator) {
		c.extPending = append(c.extPending, e)
	}
}

// WithMiddleware appends middleware to the session execution chain, after
// the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(c *Coordinator) {
		c.mws = append(c.mws, m)
	}
}

// WithBackoff sets the strategy for idle waits when the source has no
// ready work. Defaults to backoff.DefaultStrategy().
func WithBackoff(b backoff.Strategy) Option {
	return func(c *Coordinator) {
		c.bo = b
	}
}
