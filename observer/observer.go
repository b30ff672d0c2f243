package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/scale"
)

// WorkerState is the projection of one worker for dashboards.
type WorkerState struct {
	ID        id.WorkerID `json:"id" msgpack:"id"`
	State     string      `json:"state" msgpack:"state"`
	IssueID   string      `json:"issue_id,omitempty" msgpack:"issue_id,omitempty"`
	Sessions  int         `json:"sessions" msgpack:"sessions"`
	StartedAt time.Time   `json:"started_at,omitempty" msgpack:"started_at,omitempty"`
}

// Snapshot is one point-in-time projection of a running harness. It is
// written once and never read back by the harness itself.
type Snapshot struct {
	TakenAt      time.Time             `json:"taken_at" msgpack:"taken_at"`
	State        *harness.HarnessState `json:"state" msgpack:"state"`
	Workers      []WorkerState         `json:"workers" msgpack:"workers"`
	ScaleMetrics scale.Metrics         `json:"scale_metrics" msgpack:"scale_metrics"`
	PendingWork  int                   `json:"pending_work" msgpack:"pending_work"`
}

// Observer writes snapshots to a sink through a bounded queue. Writes
// are best-effort: when the queue is full the snapshot is dropped and
// counted, never blocking the caller.
type Observer struct {
	codec  Codec
	sink   Sink
	logger *slog.Logger

	queue   chan *Snapshot
	dropped int64
	mu      sync.Mutex

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures an Observer.
type Option func(*Observer)

// WithCodec selects the snapshot wire format. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(o *Observer) { o.codec = c }
}

// WithQueueSize bounds the snapshot queue. Defaults to 64.
func WithQueueSize(n int) Option {
	return func(o *Observer) {
		if n > 0 {
			o.queue = make(chan *Snapshot, n)
		}
	}
}

// New creates an observer writing to the given sink.
func New(sink Sink, logger *slog.Logger, opts ...Option) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Observer{
		codec:  &JSONCodec{},
		sink:   sink,
		logger: logger.With(slog.String("component", "observer")),
		queue:  make(chan *Snapshot, 64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the background writer. Idempotent.
func (o *Observer) Start(_ context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if o.running {
		return nil
	}
	o.running = true
	o.stopCh = make(chan struct{})

	o.wg.Add(1)
	go o.writeLoop()
	return nil
}

// Stop drains the queue and stops the writer. Idempotent.
func (o *Observer) Stop(_ context.Context) error {
	o.runMu.Lock()
	if !o.running {
		o.runMu.Unlock()
		return nil
	}
	o.running = false
	close(o.stopCh)
	o.runMu.Unlock()

	o.wg.Wait()
	return nil
}

// Observe enqueues a snapshot for writing. It never blocks; when the
// queue is full the snapshot is dropped.
func (o *Observer) Observe(snap *Snapshot) {
	if snap == nil {
		return
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	select {
	case o.queue <- snap:
	default:
		o.mu.Lock()
		o.dropped++
		o.mu.Unlock()
	}
}

// Dropped returns how many snapshots were discarded on a full queue.
func (o *Observer) Dropped() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

func (o *Observer) writeLoop() {
	defer o.wg.Done()

	for {
		select {
		case snap := <-o.queue:
			o.write(snap)
		case <-o.stopCh:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case snap := <-o.queue:
					o.write(snap)
				default:
					return
				}
			}
		}
	}
}

func (o *Observer) write(snap *Snapshot) {
	data, err := o.codec.Encode(snap)
	if err != nil {
		o.logger.Warn("snapshot encode failed", slog.String("error", err.Error()))
		return
	}
	if err := o.sink.Write(data); err != nil {
		o.logger.Warn("snapshot write failed",
			slog.String("codec", o.codec.Name()),
			slog.String("error", err.Error()))
	}
}
