package team

import (
	"fmt"

	"github.com/vishvananda/netlink/nl"

	"github.com/frobware/go-team/attr"
)

// Port is one member link of the team device as of the last sync.
// Ports are replaced wholesale on every sync; a pointer obtained before
// a resync refers to a record that is no longer in the snapshot.
type Port struct {
	Ifindex uint32 `json:"ifindex" yaml:"ifindex"`
	Speed   uint32 `json:"speed" yaml:"speed"`
	Duplex  uint8  `json:"duplex" yaml:"duplex"`
	Changed bool   `json:"changed" yaml:"changed"`
	LinkUp  bool   `json:"linkup" yaml:"linkup"`
}

// OptionType is the value type of an Option.
type OptionType int

const (
	OptionTypeU32 OptionType = iota + 1
	OptionTypeString
)

func (t OptionType) String() string {
	switch t {
	case OptionTypeU32:
		return "u32"
	case OptionTypeString:
		return "string"
	default:
		return fmt.Sprintf("OptionType(%d)", int(t))
	}
}

// ParseOptionType parses "u32" or "string".
func ParseOptionType(s string) (OptionType, error) {
	switch s {
	case "u32":
		return OptionTypeU32, nil
	case "string":
		return OptionTypeString, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrTypeNotSupported, s)
	}
}

func optionTypeOf(t attr.WireType) OptionType {
	switch t {
	case attr.WireU32:
		return OptionTypeU32
	case attr.WireString:
		return OptionTypeString
	default:
		return 0
	}
}

// Option is one named configuration value exposed by the driver's
// active mode.
type Option struct {
	Name    string
	Type    OptionType
	Changed bool
	data    []byte
}

// U32 returns the value of a u32 option. It returns zero for options
// of any other type.
func (o *Option) U32() uint32 {
	if o.Type != OptionTypeU32 || len(o.data) < 4 {
		return 0
	}
	return nl.NativeEndian().Uint32(o.data)
}

// Str returns the value of a string option. It returns the empty
// string for options of any other type.
func (o *Option) Str() string {
	if o.Type != OptionTypeString {
		return ""
	}
	return string(o.data)
}

// Value returns the option value as a uint32 or a string.
func (o *Option) Value() any {
	switch o.Type {
	case OptionTypeU32:
		return o.U32()
	case OptionTypeString:
		return o.Str()
	default:
		return nil
	}
}

func (o *Option) String() string {
	return fmt.Sprintf("%s=%v", o.Name, o.Value())
}

// ChangeType is the category of change a handler is interested in.
type ChangeType int

const (
	PortChange ChangeType = iota + 1
	OptionChange
	AllChange
)

func (t ChangeType) String() string {
	switch t {
	case PortChange:
		return "port"
	case OptionChange:
		return "option"
	case AllChange:
		return "all"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// ChangeHandler is called after the snapshot of a category it is
// interested in has been replaced. A handler is identified by its
// pointer: register the same *ChangeHandler at most once.
type ChangeHandler struct {
	Type ChangeType
	Func func(*Session)
}
