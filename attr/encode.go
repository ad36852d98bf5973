package attr

import (
	"errors"
	"fmt"
	"os"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

var (
	// ErrNoBufferSpace is returned when a request does not fit the
	// message size limit. Nothing has been sent when it is returned.
	ErrNoBufferSpace = errors.New("attribute buffer exhausted")

	// ErrTypeNotSupported is returned when an option value is neither
	// a u32 nor a string.
	ErrTypeNotSupported = errors.New("option type not supported")
)

// headerLen is the netlink plus generic netlink header size that every
// request spends before its first attribute.
const headerLen = unix.SizeofNlMsghdr + 4

// DefaultLimit returns the attribute budget of a single request: one
// page minus the message headers.
func DefaultLimit() int {
	return os.Getpagesize() - headerLen
}

// Encoder accumulates attributes for one request. The first append
// that would exceed the limit poisons the encoder; Bytes then reports
// ErrNoBufferSpace and returns no partial message.
type Encoder struct {
	limit int
	used  int
	top   []*nl.RtAttr
	stack []*nl.RtAttr
	err   error
}

// NewEncoder returns an Encoder with the given attribute budget in bytes.
func NewEncoder(limit int) *Encoder {
	return &Encoder{limit: limit}
}

func align(n int) int {
	return (n + unix.RTA_ALIGNTO - 1) &^ (unix.RTA_ALIGNTO - 1)
}

func (e *Encoder) put(typ uint16, data []byte) *nl.RtAttr {
	if e.err != nil {
		return nil
	}
	n := align(unix.SizeofRtAttr + len(data))
	if e.used+n > e.limit {
		e.err = fmt.Errorf("%w: attribute %d needs %d bytes, %d of %d used",
			ErrNoBufferSpace, typ&typeMask, n, e.used, e.limit)
		return nil
	}
	e.used += n
	if len(e.stack) == 0 {
		a := nl.NewRtAttr(int(typ), data)
		e.top = append(e.top, a)
		return a
	}
	return e.stack[len(e.stack)-1].AddRtAttr(int(typ), data)
}

// Uint32 appends a u32 attribute.
func (e *Encoder) Uint32(typ uint16, v uint32) {
	e.put(typ, nl.Uint32Attr(v))
}

// Uint8 appends a u8 attribute.
func (e *Encoder) Uint8(typ uint16, v uint8) {
	e.put(typ, nl.Uint8Attr(v))
}

// String appends a NUL-terminated string attribute.
func (e *Encoder) String(typ uint16, v string) {
	e.put(typ, nl.ZeroTerminated(v))
}

// Flag appends a zero-length flag attribute.
func (e *Encoder) Flag(typ uint16) {
	e.put(typ, nil)
}

// Raw appends an attribute with a verbatim payload.
func (e *Encoder) Raw(typ uint16, data []byte) {
	e.put(typ, data)
}

// Nested appends a nested attribute whose children are added by fn.
func (e *Encoder) Nested(typ uint16, fn func(*Encoder)) {
	a := e.put(typ|nestedFlag, nil)
	if a == nil {
		return
	}
	e.stack = append(e.stack, a)
	fn(e)
	e.stack = e.stack[:len(e.stack)-1]
}

// Bytes returns the serialised attributes, or the first append error.
func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	b := make([]byte, 0, e.used)
	for _, a := range e.top {
		b = append(b, a.Serialize()...)
	}
	return b, nil
}

// PortListGet builds the attributes of a PORT_LIST_GET request.
func PortListGet(ifindex uint32) ([]byte, error) {
	e := NewEncoder(DefaultLimit())
	e.Uint32(AttrTeamIfindex, ifindex)
	return e.Bytes()
}

// OptionsGet builds the attributes of an OPTIONS_GET request.
func OptionsGet(ifindex uint32) ([]byte, error) {
	e := NewEncoder(DefaultLimit())
	e.Uint32(AttrTeamIfindex, ifindex)
	return e.Bytes()
}

// OptionSet builds the attributes of an OPTIONS_SET request using the
// default size limit. value must be a uint32 or a string.
func OptionSet(ifindex uint32, name string, value any) ([]byte, error) {
	return NewEncoder(DefaultLimit()).OptionSet(ifindex, name, value)
}

// OptionSet builds a single-item option list carrying name, wire type
// and value, wrapped with the team ifindex.
func (e *Encoder) OptionSet(ifindex uint32, name string, value any) ([]byte, error) {
	var typ WireType
	switch value.(type) {
	case uint32:
		typ = WireU32
	case string:
		typ = WireString
	default:
		return nil, fmt.Errorf("%w: %T", ErrTypeNotSupported, value)
	}

	e.Uint32(AttrTeamIfindex, ifindex)
	e.Nested(AttrListOption, func(e *Encoder) {
		e.Nested(AttrItemOption, func(e *Encoder) {
			e.String(AttrOptionName, name)
			e.Uint32(AttrOptionType, uint32(typ))
			switch v := value.(type) {
			case uint32:
				e.Uint32(AttrOptionData, v)
			case string:
				e.String(AttrOptionData, v)
			}
		})
	})
	return e.Bytes()
}

// EncodePortList builds the reply layout the driver uses for a port
// list: the team ifindex followed by one nested item per port.
func EncodePortList(team uint32, ports []PortRecord) []byte {
	e := NewEncoder(1 << 20)
	e.Uint32(AttrTeamIfindex, team)
	e.Nested(AttrListPort, func(e *Encoder) {
		for _, p := range ports {
			e.Nested(AttrItemPort, func(e *Encoder) {
				e.Uint32(AttrPortIfindex, p.Ifindex)
				if p.Changed {
					e.Flag(AttrPortChanged)
				}
				if p.LinkUp {
					e.Flag(AttrPortLinkUp)
				}
				e.Uint32(AttrPortSpeed, p.Speed)
				e.Uint8(AttrPortDuplex, p.Duplex)
			})
		}
	})
	b, _ := e.Bytes()
	return b
}

// EncodeOptionList builds the reply layout the driver uses for an
// option list. String data gets its NUL terminator appended; data of
// any other type is copied verbatim.
func EncodeOptionList(team uint32, options []OptionRecord) []byte {
	e := NewEncoder(1 << 20)
	e.Uint32(AttrTeamIfindex, team)
	e.Nested(AttrListOption, func(e *Encoder) {
		for _, o := range options {
			e.Nested(AttrItemOption, func(e *Encoder) {
				e.String(AttrOptionName, o.Name)
				if o.Changed {
					e.Flag(AttrOptionChanged)
				}
				e.Uint32(AttrOptionType, uint32(o.Type))
				if o.Type == WireString {
					e.String(AttrOptionData, string(o.Data))
				} else {
					e.Raw(AttrOptionData, o.Data)
				}
			})
		}
	})
	b, _ := e.Bytes()
	return b
}
