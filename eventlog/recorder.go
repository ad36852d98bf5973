package eventlog

import (
	"errors"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// ErrClosed is returned when recording to a closed Recorder.
var ErrClosed = errors.New("eventlog: recorder closed")

// Recorder appends events to a file. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// Create opens path for appending, creating it with mode 0644 if
// needed.
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Recorder{file: f, encoder: NewEncoder(f)}, nil
}

// Record appends ev.
func (r *Recorder) Record(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return r.encoder.Encode(ev)
}

// Close closes the file. Calling Close more than once is harmless.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
