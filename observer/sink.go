package observer

import (
	"bytes"
	"os"
	"sync"
)

// Sink accepts encoded snapshot frames. Implementations must be safe
// for use from the observer's writer goroutine.
type Sink interface {
	Write(frame []byte) error
}

// ──────────────────────────────────────────────────
// File sink
// ──────────────────────────────────────────────────

// FileSink appends newline-delimited frames to a file. Suited to the
// JSON codec (NDJSON); binary codecs should use a framing sink instead.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the snapshot file in append mode.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

// Write appends one frame and a newline.
func (s *FileSink) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(frame); err != nil {
		return err
	}
	_, err := s.file.Write([]byte{'\n'})
	return err
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ──────────────────────────────────────────────────
// Buffer sink
// ──────────────────────────────────────────────────

// BufferSink retains frames in memory. Used in tests and by the load
// test report.
type BufferSink struct {
	mu     sync.Mutex
	frames [][]byte
}

// NewBufferSink creates an empty in-memory sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

// Write retains a copy of the frame.
func (s *BufferSink) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, bytes.Clone(frame))
	return nil
}

// Frames returns copies of all retained frames in write order.
func (s *BufferSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		out[i] = bytes.Clone(f)
	}
	return out
}

// Len returns the number of retained frames.
func (s *BufferSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
