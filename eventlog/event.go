// Package eventlog records team change notifications as a stream of
// CBOR events and reads them back.
//
// A recording is a plain concatenation of CBOR-encoded Event values;
// files can be appended to across runs.
package eventlog

import (
	"fmt"
	"time"
)

// Category is the kind of snapshot an event carries.
type Category uint8

const (
	CategoryPort   Category = 1
	CategoryOption Category = 2
)

func (c Category) String() string {
	switch c {
	case CategoryPort:
		return "port"
	case CategoryOption:
		return "option"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Event is one snapshot observed after a change notification.
type Event struct {
	Time      time.Time `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	Team      uint32    `cbor:"3,keyasint"`
	TeamName  string    `cbor:"4,keyasint,omitempty"`
	Category  Category  `cbor:"5,keyasint"`
	Ports     []Port    `cbor:"6,keyasint,omitempty"`
	Options   []Option  `cbor:"7,keyasint,omitempty"`
}

// Port is the recorded state of one port.
type Port struct {
	Ifindex uint32 `cbor:"1,keyasint"`
	Speed   uint32 `cbor:"2,keyasint,omitempty"`
	Duplex  uint8  `cbor:"3,keyasint,omitempty"`
	Changed bool   `cbor:"4,keyasint,omitempty"`
	LinkUp  bool   `cbor:"5,keyasint,omitempty"`
}

// Option is the recorded state of one option. Exactly one of U32 and
// String is meaningful, selected by Type ("u32" or "string").
type Option struct {
	Name    string `cbor:"1,keyasint"`
	Type    string `cbor:"2,keyasint"`
	U32     uint32 `cbor:"3,keyasint,omitempty"`
	String  string `cbor:"4,keyasint,omitempty"`
	Changed bool   `cbor:"5,keyasint,omitempty"`
}

// Value returns the option value as a uint32 or a string.
func (o Option) Value() any {
	if o.Type == "u32" {
		return o.U32
	}
	return o.String
}
