// Package attr encodes and decodes the team driver's generic netlink
// attribute schema.
//
// Requests are built with an Encoder, which enforces a message size
// limit so that an oversized command fails before anything reaches the
// socket. Replies and change notifications are decoded into flat
// records; a malformed nested record is reported as an Anomaly and
// skipped rather than failing the whole list.
package attr

import "fmt"

// Generic netlink family parameters of the team driver.
const (
	FamilyName       = "team"
	FamilyVersion    = 1
	ChangeEventGroup = "change_event"
)

// Command is a team generic netlink command.
type Command uint8

const (
	CmdNoop Command = iota
	CmdOptionsSet
	CmdOptionsGet
	CmdPortListGet
)

func (c Command) String() string {
	switch c {
	case CmdNoop:
		return "noop"
	case CmdOptionsSet:
		return "options-set"
	case CmdOptionsGet:
		return "options-get"
	case CmdPortListGet:
		return "port-list-get"
	default:
		return fmt.Sprintf("Command(%d)", uint8(c))
	}
}

// Top-level attributes.
const (
	AttrTeamIfindex uint16 = 1
	AttrListOption  uint16 = 2
	AttrListPort    uint16 = 3
)

// List item attributes.
const (
	AttrItemOption uint16 = 1
	AttrItemPort   uint16 = 1
)

// Option attributes.
const (
	AttrOptionName    uint16 = 1
	AttrOptionChanged uint16 = 2
	AttrOptionType    uint16 = 3
	AttrOptionData    uint16 = 4
)

// Port attributes.
const (
	AttrPortIfindex uint16 = 1
	AttrPortChanged uint16 = 2
	AttrPortLinkUp  uint16 = 3
	AttrPortSpeed   uint16 = 4
	AttrPortDuplex  uint16 = 5
)

// WireType is the netlink attribute type tag carried in an option's
// type attribute. Only u32 and string values are understood.
type WireType uint32

const (
	WireU32    WireType = 3
	WireString WireType = 5
)

func (t WireType) String() string {
	switch t {
	case WireU32:
		return "u32"
	case WireString:
		return "string"
	default:
		return fmt.Sprintf("WireType(%d)", uint32(t))
	}
}

// Supported reports whether values of this type can be decoded and
// encoded.
func (t WireType) Supported() bool {
	return t == WireU32 || t == WireString
}

const (
	nestedFlag uint16 = 1 << 15
	byteOrder  uint16 = 1 << 14
	typeMask          = ^(nestedFlag | byteOrder)
)
