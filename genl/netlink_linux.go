package genl

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-team/netns"
)

// genlHeaderLen is the size of struct genlmsghdr.
const genlHeaderLen = 4

// Netlink opens real generic netlink sockets. The zero value works in
// the caller's network namespace.
type Netlink struct {
	// NetNS, when set, is the path of the network namespace sockets
	// are created in. Sockets keep their namespace after creation.
	NetNS string
}

// Dial opens a generic netlink socket.
func (n Netlink) Dial() (Socket, error) {
	var s *nl.NetlinkSocket
	err := netns.Run(n.NetNS, func() error {
		var err error
		s, err = nl.Subscribe(unix.NETLINK_GENERIC)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open generic netlink socket: %w", err)
	}
	return &conn{sock: s}, nil
}

// ResolveFamily looks up a generic netlink family and its multicast
// groups through the kernel's controller.
func (n Netlink) ResolveFamily(name string) (Family, error) {
	var gf *netlink.GenlFamily
	err := netns.Run(n.NetNS, func() error {
		var err error
		gf, err = netlink.GenlFamilyGet(name)
		return err
	})
	if err != nil {
		return Family{}, fmt.Errorf("resolve generic netlink family %q: %w", name, err)
	}
	f := Family{
		ID:     gf.ID,
		Name:   gf.Name,
		Groups: make(map[string]uint32, len(gf.Groups)),
	}
	for _, g := range gf.Groups {
		f.Groups[g.Name] = g.ID
	}
	return f, nil
}

type conn struct {
	sock *nl.NetlinkSocket
}

func (c *conn) Send(req Request) (uint32, error) {
	r := nl.NewNetlinkRequest(int(req.Family), unix.NLM_F_ACK|int(req.Flags))
	r.AddData(&nl.Genlmsg{Command: req.Command, Version: req.Version})
	r.AddRawData(req.Attrs)
	if err := c.sock.Send(r); err != nil {
		return 0, err
	}
	return r.Seq, nil
}

func (c *conn) Receive() ([]Message, error) {
	for {
		raw, _, err := c.sock.Receive()
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, err
		}
		return convert(raw)
	}
}

func convert(raw []syscall.NetlinkMessage) ([]Message, error) {
	msgs := make([]Message, 0, len(raw))
	for _, m := range raw {
		msg := Message{
			Seq:    m.Header.Seq,
			Family: m.Header.Type,
			Multi:  m.Header.Flags&unix.NLM_F_MULTI != 0,
		}
		switch m.Header.Type {
		case unix.NLMSG_NOOP:
			continue
		case unix.NLMSG_OVERRUN:
			return msgs, fmt.Errorf("netlink overrun: %w", unix.ENOBUFS)
		case unix.NLMSG_DONE:
			msg.Kind = KindDone
		case unix.NLMSG_ERROR:
			if len(m.Data) < 4 {
				return msgs, fmt.Errorf("truncated netlink error message: %w", unix.EINVAL)
			}
			code := int32(nl.NativeEndian().Uint32(m.Data[:4]))
			if code == 0 {
				msg.Kind = KindAck
			} else {
				msg.Kind = KindError
				msg.Errno = unix.Errno(-code)
			}
		default:
			if len(m.Data) < genlHeaderLen {
				continue
			}
			g := nl.DeserializeGenlmsg(m.Data)
			msg.Kind = KindData
			msg.Command = g.Command
			msg.Version = g.Version
			msg.Attrs = m.Data[genlHeaderLen:]
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *conn) Ready(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(c.sock.GetFd()), Events: unix.POLLIN}}
	ms := int(timeout / time.Millisecond)
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && readable(fds[0].Revents), nil
	}
}

// readable reports whether Receive will return without blocking. A
// pending socket error (POLLERR, e.g. ENOBUFS after a multicast
// overrun) counts: Receive surfaces it.
func readable(revents int16) bool {
	return revents&(unix.POLLIN|unix.POLLERR) != 0
}

func (c *conn) JoinGroup(group uint32) error {
	return unix.SetsockoptInt(c.sock.GetFd(), unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(group))
}

func (c *conn) Fd() int {
	return c.sock.GetFd()
}

func (c *conn) Close() error {
	c.sock.Close()
	return nil
}
