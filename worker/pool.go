package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
)

// Metrics is a point-in-time view of pool occupancy.
type Metrics struct {
	TotalWorkers     int `json:"total_workers"`
	IdleWorkers      int `json:"idle_workers"`
	ActiveWorkers    int `json:"active_workers"`
	SessionsExecuted int `json:"sessions_executed"`
}

// Pool owns the fixed-or-elastic set of workers. Outside initialization,
// only the scale manager adds or removes workers. Pool sizes are small
// (tens), so O(pool size) scans are fine.
type Pool struct {
	factory func() *Worker
	logger  *slog.Logger

	mu      sync.Mutex
	workers map[string]*Worker
	order   []string
}

// NewPool creates a pool that spawns workers through the given factory.
func NewPool(factory func() *Worker, logger *slog.Logger) *Pool {
	return &Pool{
		factory: factory,
		logger:  logger,
		workers: make(map[string]*Worker),
	}
}

// AddWorker spawns a new worker and adds it to the pool.
func (p *Pool) AddWorker() *Worker {
	w := p.factory()

	p.mu.Lock()
	key := w.ID().String()
	p.workers[key] = w
	p.order = append(p.order, key)
	p.mu.Unlock()

	p.logger.Debug("worker added", slog.String("worker_id", key))
	return w
}

// RemoveWorker removes a worker by id. It refuses to remove a worker with
// an active assignment; the caller must wait and retry.
func (p *Pool) RemoveWorker(workerID id.WorkerID) error {
	key := workerID.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[key]
	if !ok {
		return fmt.Errorf("%w: %s", harness.ErrWorkerNotFound, key)
	}
	if w.State() != StateIdle {
		return fmt.Errorf("%w: %s", harness.ErrWorkerBusy, key)
	}

	delete(p.workers, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}

	p.logger.Debug("worker removed", slog.String("worker_id", key))
	return nil
}

// Available reserves and returns an idle worker, or nil when all are
// busy. The reservation keeps a concurrent RetireIdleWorker from removing
// the worker before the caller claims it; a caller that ends up not
// claiming must Reset the worker to release it.
func (p *Pool) Available() *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, key := range p.order {
		if w := p.workers[key]; w.tryReserve() {
			return w
		}
	}
	return nil
}

// Get returns the worker with the given id.
func (p *Pool) Get(workerID id.WorkerID) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID.String()]
	return w, ok
}

// All returns the workers in insertion order.
func (p *Pool) All() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Worker, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.workers[key])
	}
	return out
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// ActiveCount returns how many workers currently hold an assignment.
func (p *Pool) ActiveCount() int {
	n := 0
	for _, w := range p.All() {
		if w.State() != StateIdle {
			n++
		}
	}
	return n
}

// StalledCount returns how many in-flight sessions have exceeded the
// given timeout. Stalled workers are reported, never killed: the executor
// contract has no cancellation primitive.
func (p *Pool) StalledCount(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	now := time.Now().UTC()
	n := 0
	for _, w := range p.All() {
		if started, ok := w.SessionStartedAt(); ok && now.Sub(started) > timeout {
			n++
		}
	}
	return n
}

// RecyclableCount returns how many workers have executed at least
// maxSessions sessions. Zero maxSessions disables the signal.
func (p *Pool) RecyclableCount(maxSessions int) int {
	if maxSessions <= 0 {
		return 0
	}
	n := 0
	for _, w := range p.All() {
		if w.Sessions() >= maxSessions {
			n++
		}
	}
	return n
}

// SpawnWorker adds one worker. It exists to satisfy the scale manager's
// pool contract.
func (p *Pool) SpawnWorker() error {
	p.AddWorker()
	return nil
}

// RetireIdleWorker removes one idle worker, preferring the most recently
// added. Returns ErrWorkerBusy when no worker is removable.
func (p *Pool) RetireIdleWorker() error {
	p.mu.Lock()
	var victim *Worker
	for i := len(p.order) - 1; i >= 0; i-- {
		if w := p.workers[p.order[i]]; w.State() == StateIdle {
			victim = w
			break
		}
	}
	p.mu.Unlock()

	if victim == nil {
		return harness.ErrWorkerBusy
	}
	return p.RemoveWorker(victim.ID())
}

// GetMetrics returns a point-in-time occupancy snapshot.
func (p *Pool) GetMetrics() Metrics {
	m := Metrics{}
	for _, w := range p.All() {
		m.TotalWorkers++
		if w.State() == StateIdle {
			m.IdleWorkers++
		} else {
			m.ActiveWorkers++
		}
		m.SessionsExecuted += w.Sessions()
	}
	return m
}
