package eventlog

import (
	"errors"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events while reading. Zero fields match everything.
type Filter struct {
	Team     uint32
	Category Category
}

func (f Filter) matches(ev Event) bool {
	if f.Team != 0 && ev.Team != f.Team {
		return false
	}
	if f.Category != 0 && ev.Category != f.Category {
		return false
	}
	return true
}

// Reader streams events from a recording.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	filter  Filter
}

// Open opens a recording file.
func Open(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f, filter)
	r.closer = f
	return r, nil
}

// NewReader reads events from any stream.
func NewReader(rd io.Reader, filter Filter) *Reader {
	return &Reader{decoder: NewDecoder(rd), filter: filter}
}

// Next returns the next matching event, or io.EOF at the end of the
// recording.
func (r *Reader) Next() (Event, error) {
	for {
		var ev Event
		if err := r.decoder.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(ev) {
			return ev, nil
		}
	}
}

// Close closes the underlying file when the Reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
