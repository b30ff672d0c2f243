package coordinator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/harness"
	"github.com/xraph/harness/backoff"
	"github.com/xraph/harness/checkpoint"
	"github.com/xraph/harness/convoy"
	"github.com/xraph/harness/ext"
	mw "github.com/xraph/harness/middleware"
	"github.com/xraph/harness/observability"
	"github.com/xraph/harness/observer"
	"github.com/xraph/harness/redirect"
	"github.com/xraph/harness/scale"
	"github.com/xraph/harness/session"
	"github.com/xraph/harness/store"
	"github.com/xraph/harness/work"
	"github.com/xraph/harness/worker"
)

// Coordinator is the Mayor: it drives the control loop and owns the run's
// HarnessState. All state mutation happens on the Run goroutine; background
// components (scale manager, observer) only return data.
type Coordinator struct {
	config      harness.Config
	scaleConfig scale.Config
	policy      harness.CheckpointPolicy
	mode        harness.Mode
	scopeID     string

	source work.Source
	store  store.Store

	logger     *slog.Logger
	extensions *ext.Registry
	pool       *worker.Pool
	scaler     *scale.Manager
	tracker    *checkpoint.Tracker
	detector   *redirect.Detector
	convoy     *convoy.Queue
	convoyName string
	obs        *observer.Observer
	bo         backoff.Strategy
	mws        []mw.Middleware

	// Loop-owned. Only the Run goroutine reads or writes these.
	state       *harness.HarnessState
	snapshot    *redirect.Snapshot
	notes       []string
	assigned    map[string]int
	inFlight    int
	pendingWork int

	completions chan *session.Result

	pauseMu     sync.Mutex
	pausePend   bool
	pauseReason string

	// Extensions queued by options before the registry exists.
	extPending []ext.Extension
}

// New builds a Coordinator around a work source, a session executor, and a
// store. The executor is wrapped in the default middleware stack
// (recover, tracing, metrics, logging, timeout) plus any middleware added
// through options.
func New(source work.Source, executor session.Executor, st store.Store, opts ...Option) (*Coordinator, error) {
	if source == nil {
		return nil, harness.ErrNoSource
	}
	if executor == nil {
		return nil, harness.ErrNoExecutor
	}
	if st == nil {
		return nil, harness.ErrNoStore
	}

	c := &Coordinator{
		config:      harness.DefaultConfig(),
		scaleConfig: scale.DefaultConfig(),
		policy:      harness.DefaultCheckpointPolicy(),
		mode:        harness.ModeWorkflow,
		source:      source,
		store:       st,
		logger:      slog.Default(),
		assigned:    make(map[string]int),
	}

	for _, opt := range opts {
		opt(c)
	}

	// The registry needs the final logger, so it is built after options run.
	c.extensions = ext.NewRegistry(c.logger)
	c.extensions.Register(observability.NewMetricsExtension())
	for _, e := range c.extPending {
		c.extensions.Register(e)
	}
	c.extPending = nil

	if c.bo == nil {
		c.bo = backoff.DefaultStrategy()
	}

	tracker, err := checkpoint.NewTracker(c.policy, c.logger)
	if err != nil {
		return nil, fmt.Errorf("coordinator: checkpoint policy: %w", err)
	}
	c.tracker = tracker
	c.detector = redirect.NewDetector(c.logger)
	if c.convoyName != "" {
		c.convoy = convoy.New(c.convoyName, c.logger)
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(c.logger),
		mw.Tracing(),
		mw.Metrics(),
		mw.Logging(c.logger),
		mw.Timeout(c.logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(c.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, c.mws...)
	wrapped := mw.Apply(executor, allMws...)

	c.pool = worker.NewPool(func() *worker.Worker {
		return worker.New(source, wrapped, c.logger)
	}, c.logger)
	for c.pool.Size() < c.scaleConfig.MinWorkers {
		c.pool.AddWorker()
	}

	c.scaler = scale.NewManager(c.scaleConfig, c.pool, c.logger,
		scale.WithEmitter(c.extensions))

	// Sized so an executing worker can always hand off its result without
	// blocking on a slow loop iteration.
	size := c.scaleConfig.MaxWorkers
	if size < 1 {
		size = 1
	}
	c.completions = make(chan *session.Result, size)

	return c, nil
}

// RequestPause asks the loop to pause at the next tick boundary. In-flight
// sessions are drained before the state transition.
func (c *Coordinator) RequestPause(reason string) {
	c.pauseMu.Lock()
	c.pausePend = true
	c.pauseReason = reason
	c.pauseMu.Unlock()
}

func (c *Coordinator) pauseRequested() (string, bool) {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if !c.pausePend {
		return "", false
	}
	c.pausePend = false
	return c.pauseReason, true
}

// State returns a copy of the current run state, or nil before Run.
func (c *Coordinator) State() *harness.HarnessState {
	if c.state == nil {
		return nil
	}
	cp := *c.state
	return &cp
}

// Extensions returns the lifecycle hook registry.
func (c *Coordinator) Extensions() *ext.Registry { return c.extensions }

// Pool returns the worker pool.
func (c *Coordinator) Pool() *worker.Pool { return c.pool }

// ScaleManager returns the adaptive-capacity controller.
func (c *Coordinator) ScaleManager() *scale.Manager { return c.scaler }
