package observer_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/harness"
	"github.com/xraph/harness/id"
	"github.com/xraph/harness/observer"
	"github.com/xraph/harness/scale"
)

func newTestSnapshot() *observer.Snapshot {
	state := harness.NewState(harness.ModePlatform, harness.DefaultCheckpointPolicy())
	return &observer.Snapshot{
		State: state,
		Workers: []observer.WorkerState{
			{ID: id.NewWorkerID(), State: "executing", IssueID: "gt-1", Sessions: 3},
			{ID: id.NewWorkerID(), State: "idle", Sessions: 1},
		},
		ScaleMetrics: scale.Metrics{CurrentWorkers: 2, ActiveWorkers: 1, Health: scale.HealthHealthy},
		PendingWork:  4,
	}
}

func TestObserver_WritesSnapshotToSink(t *testing.T) {
	sink := observer.NewBufferSink()
	o := observer.New(sink, slog.Default())

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	o.Observe(newTestSnapshot())
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if sink.Len() != 1 {
		t.Fatalf("frames = %d, want 1", sink.Len())
	}
	if o.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", o.Dropped())
	}
}

func TestObserver_NeverBlocksWhenQueueFull(t *testing.T) {
	sink := observer.NewBufferSink()
	o := observer.New(sink, slog.Default(), observer.WithQueueSize(1))

	// Writer not started: the queue holds one snapshot, the rest drop.
	done := make(chan struct{})
	go func() {
		for range 10 {
			o.Observe(newTestSnapshot())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observe blocked on a full queue")
	}
	if o.Dropped() != 9 {
		t.Fatalf("dropped = %d, want 9", o.Dropped())
	}
}

func TestObserver_StopDrainsQueue(t *testing.T) {
	sink := observer.NewBufferSink()
	o := observer.New(sink, slog.Default())

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for range 5 {
		o.Observe(newTestSnapshot())
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if sink.Len() != 5 {
		t.Fatalf("frames after stop = %d, want 5", sink.Len())
	}
}

type failingSink struct{}

func (failingSink) Write(_ []byte) error { return errors.New("disk full") }

func TestObserver_SinkFailureIsBestEffort(t *testing.T) {
	o := observer.New(failingSink{}, slog.Default())

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	o.Observe(newTestSnapshot())
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := observer.GetCodec(observer.CodecNameJSON)
	snap := newTestSnapshot()
	snap.TakenAt = time.Now().UTC()

	data, err := codec.Encode(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State.ID != snap.State.ID {
		t.Fatalf("harness id = %s, want %s", got.State.ID, snap.State.ID)
	}
	if got.PendingWork != 4 || len(got.Workers) != 2 {
		t.Fatalf("projection lost fields: %+v", got)
	}
}

func TestMsgpackCodec_RoundTrip(t *testing.T) {
	codec := observer.GetCodec(observer.CodecNameMsgpack)
	snap := newTestSnapshot()
	snap.TakenAt = time.Now().UTC()

	data, err := codec.Encode(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PendingWork != snap.PendingWork || len(got.Workers) != len(snap.Workers) {
		t.Fatalf("projection lost fields: %+v", got)
	}
}

func TestGetCodec_UnknownFallsBackToJSON(t *testing.T) {
	if got := observer.GetCodec("protobuf").Name(); got != observer.CodecNameJSON {
		t.Fatalf("fallback codec = %q, want json", got)
	}
	if got := observer.GetCodec("").Name(); got != observer.CodecNameJSON {
		t.Fatalf("empty codec = %q, want json", got)
	}
}

func TestFileSink_AppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.ndjson")
	sink, err := observer.NewFileSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}

	o := observer.New(sink, slog.Default())
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	o.Observe(newTestSnapshot())
	o.Observe(newTestSnapshot())
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
}
