// Package genl adapts generic netlink sockets from
// github.com/vishvananda/netlink to the small message model the team
// session engine works with.
//
// A Socket sends requests and returns whole datagrams split into
// messages. Acknowledgements, errors and multipart terminators are
// classified but otherwise passed through: sequence checking and
// completion tracking belong to the caller.
package genl

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Kind classifies a received netlink message.
type Kind int

const (
	// KindData is a generic netlink message carrying attributes.
	KindData Kind = iota
	// KindAck is an NLMSG_ERROR message with a zero error code.
	KindAck
	// KindError is an NLMSG_ERROR message with a non-zero error code.
	KindError
	// KindDone terminates a multipart reply.
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindAck:
		return "ack"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is one received netlink message.
type Message struct {
	Kind Kind
	// Seq is the netlink sequence number.
	Seq uint32
	// Family is the netlink message type; for data messages it is the
	// generic netlink family id.
	Family  uint16
	Command uint8
	Version uint8
	// Attrs holds the attribute stream that follows the generic
	// netlink header.
	Attrs []byte
	// Errno is set for KindError.
	Errno unix.Errno
	// Multi reports NLM_F_MULTI: the message is one part of a
	// multipart dump that ends with a KindDone message.
	Multi bool
}

// Request is a generic netlink request. The socket stamps the sequence
// number and always asks for an acknowledgement.
type Request struct {
	Family  uint16
	Command uint8
	Version uint8
	Flags   uint16
	Attrs   []byte
}

// Family is a resolved generic netlink family.
type Family struct {
	ID     uint16
	Name   string
	Groups map[string]uint32
}

// Group returns the id of the named multicast group.
func (f Family) Group(name string) (uint32, bool) {
	id, ok := f.Groups[name]
	return id, ok
}

// Socket is a connected generic netlink socket.
type Socket interface {
	// Send transmits req and returns the sequence number it was sent with.
	Send(req Request) (uint32, error)
	// Receive blocks for one datagram and returns its messages.
	Receive() ([]Message, error)
	// Ready reports whether a Receive would not block, waiting at most
	// timeout. A zero timeout polls.
	Ready(timeout time.Duration) (bool, error)
	// JoinGroup subscribes the socket to a multicast group.
	JoinGroup(group uint32) error
	// Fd returns the pollable descriptor.
	Fd() int
	Close() error
}
