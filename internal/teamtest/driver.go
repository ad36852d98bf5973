// Package teamtest provides a synthetic team driver for exercising
// sessions without a kernel.
//
// A Driver answers PORT_LIST_GET, OPTIONS_GET and OPTIONS_SET the way
// the kernel does, records every request, and can push change
// notifications to subscribed sockets. Error injection fields control
// failures per command or per setup step.
package teamtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-team/attr"
	"github.com/frobware/go-team/genl"
)

// Family is the family id and change group the Driver reports.
var Family = genl.Family{
	ID:     0x1c,
	Name:   attr.FamilyName,
	Groups: map[string]uint32{attr.ChangeEventGroup: 7},
}

// Driver is a synthetic team driver for one team device.
type Driver struct {
	mu sync.Mutex

	// Team is the ifindex of the team device the driver answers for.
	Team    uint32
	Ports   []attr.PortRecord
	Options []attr.OptionRecord

	// MultipartOptions splits OPTIONS_GET replies into one message per
	// option, terminated by NLMSG_DONE, as the kernel does for large
	// option sets.
	MultipartOptions bool

	// NotifyOnSet pushes an option notification after every accepted
	// OPTIONS_SET.
	NotifyOnSet bool

	// Error injection.
	Reject     map[attr.Command]unix.Errno
	DialErr    []error
	ResolveErr error
	JoinErr    error
	ReceiveErr error
	NoGroup    bool

	requests []genl.Request
	sockets  []*Socket
	stray    []genl.Message
	seq      uint32
}

// NewDriver creates a driver for the team device with the given
// ifindex.
func NewDriver(team uint32) *Driver {
	return &Driver{
		Team:   team,
		Reject: make(map[attr.Command]unix.Errno),
		seq:    1000,
	}
}

// U32Option builds a u32 option record.
func U32Option(name string, v uint32) attr.OptionRecord {
	data := make([]byte, 4)
	nl.NativeEndian().PutUint32(data, v)
	return attr.OptionRecord{Name: name, Type: attr.WireU32, Data: data}
}

// StringOption builds a string option record.
func StringOption(name, v string) attr.OptionRecord {
	return attr.OptionRecord{Name: name, Type: attr.WireString, Data: []byte(v)}
}

// Requests returns a copy of every request received so far.
func (d *Driver) Requests() []genl.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]genl.Request(nil), d.requests...)
}

// Sockets returns the sockets dialled so far.
func (d *Driver) Sockets() []*Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Socket(nil), d.sockets...)
}

// Dial opens a socket. Each call consumes the next DialErr entry.
func (d *Driver) Dial() (genl.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.DialErr) > 0 {
		err := d.DialErr[0]
		d.DialErr = d.DialErr[1:]
		if err != nil {
			return nil, err
		}
	}
	s := &Socket{driver: d, fd: 100 + len(d.sockets)}
	d.sockets = append(d.sockets, s)
	return s, nil
}

// ResolveFamily resolves the team family.
func (d *Driver) ResolveFamily(name string) (genl.Family, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ResolveErr != nil {
		return genl.Family{}, d.ResolveErr
	}
	if name != attr.FamilyName {
		return genl.Family{}, unix.ENOENT
	}
	f := Family
	if d.NoGroup {
		f.Groups = map[string]uint32{}
	}
	return f, nil
}

// InjectStray queues messages delivered on the command socket ahead of
// the next reply.
func (d *Driver) InjectStray(msgs ...genl.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stray = append(d.stray, msgs...)
}

// Notify pushes one datagram to every socket subscribed to the change
// group.
func (d *Driver) Notify(msgs ...genl.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifyLocked(msgs)
}

func (d *Driver) notifyLocked(msgs []genl.Message) {
	for _, s := range d.sockets {
		if s.group != 0 && !s.closed {
			s.queue = append(s.queue, append([]genl.Message(nil), msgs...))
		}
	}
}

// NotifyPorts pushes the current port list as a notification.
func (d *Driver) NotifyPorts() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifyLocked([]genl.Message{d.portsMessage(0)})
}

// NotifyOptions pushes the current option list as a notification.
func (d *Driver) NotifyOptions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifyLocked([]genl.Message{d.optionsMessage(0, d.Options)})
}

// PortsMessage builds a port list data message for team.
func PortsMessage(seq, team uint32, ports ...attr.PortRecord) genl.Message {
	return Data(seq, attr.CmdPortListGet, attr.EncodePortList(team, ports))
}

// OptionsMessage builds an option list data message for team.
func OptionsMessage(seq, team uint32, options ...attr.OptionRecord) genl.Message {
	return Data(seq, attr.CmdOptionsGet, attr.EncodeOptionList(team, options))
}

// Data builds a data message carrying raw attributes.
func Data(seq uint32, cmd attr.Command, attrs []byte) genl.Message {
	return genl.Message{
		Kind:    genl.KindData,
		Seq:     seq,
		Family:  Family.ID,
		Command: uint8(cmd),
		Version: attr.FamilyVersion,
		Attrs:   attrs,
	}
}

// Multipart marks m as one part of a multipart notification or reply.
func Multipart(m genl.Message) genl.Message {
	m.Multi = true
	return m
}

// Done builds the message terminating a multipart dump.
func Done(seq uint32) genl.Message {
	return genl.Message{Kind: genl.KindDone, Seq: seq, Family: unix.NLMSG_DONE, Multi: true}
}

func (d *Driver) portsMessage(seq uint32) genl.Message {
	return PortsMessage(seq, d.Team, d.Ports...)
}

func (d *Driver) optionsMessage(seq uint32, options []attr.OptionRecord) genl.Message {
	return OptionsMessage(seq, d.Team, options...)
}

func ack(seq uint32) genl.Message {
	return genl.Message{Kind: genl.KindAck, Seq: seq, Family: unix.NLMSG_ERROR}
}

func reject(seq uint32, errno unix.Errno) genl.Message {
	return genl.Message{Kind: genl.KindError, Seq: seq, Family: unix.NLMSG_ERROR, Errno: errno}
}

func (d *Driver) handle(req genl.Request) (uint32, [][]genl.Message) {
	d.seq++
	seq := d.seq
	d.requests = append(d.requests, req)

	cmd := attr.Command(req.Command)
	if errno, ok := d.Reject[cmd]; ok {
		return seq, [][]genl.Message{{reject(seq, errno)}}
	}

	switch cmd {
	case attr.CmdPortListGet:
		return seq, [][]genl.Message{{d.portsMessage(seq), ack(seq)}}
	case attr.CmdOptionsGet:
		if !d.MultipartOptions {
			return seq, [][]genl.Message{{d.optionsMessage(seq, d.Options), ack(seq)}}
		}
		var batch []genl.Message
		for _, o := range d.Options {
			batch = append(batch, Multipart(d.optionsMessage(seq, []attr.OptionRecord{o})))
		}
		batch = append(batch, Done(seq))
		return seq, [][]genl.Message{batch, {ack(seq)}}
	case attr.CmdOptionsSet:
		if errno := d.applySet(req.Attrs); errno != 0 {
			return seq, [][]genl.Message{{reject(seq, errno)}}
		}
		if d.NotifyOnSet {
			d.notifyLocked([]genl.Message{d.optionsMessage(0, d.Options)})
		}
		return seq, [][]genl.Message{{ack(seq)}}
	default:
		return seq, [][]genl.Message{{reject(seq, unix.EOPNOTSUPP)}}
	}
}

func (d *Driver) applySet(attrs []byte) unix.Errno {
	ol, err := attr.DecodeOptionList(attrs)
	if err != nil || !ol.HasList || len(ol.Anomalies) > 0 {
		return unix.EINVAL
	}
	if ol.Team != d.Team {
		return unix.ENODEV
	}
	for _, set := range ol.Options {
		i := d.optionIndex(set.Name)
		if i < 0 {
			return unix.ENOENT
		}
		if d.Options[i].Type != set.Type {
			return unix.EINVAL
		}
	}
	for _, set := range ol.Options {
		i := d.optionIndex(set.Name)
		d.Options[i].Data = set.Data
		d.Options[i].Changed = true
	}
	return 0
}

func (d *Driver) optionIndex(name string) int {
	for i, o := range d.Options {
		if o.Name == name {
			return i
		}
	}
	return -1
}

// Socket is a Driver endpoint. Replies are queued on Send and handed
// out one datagram per Receive.
type Socket struct {
	driver *Driver
	fd     int
	group  uint32
	closed bool
	queue  [][]genl.Message
}

var _ genl.Socket = (*Socket)(nil)

func (s *Socket) Send(req genl.Request) (uint32, error) {
	d := s.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return 0, unix.EBADF
	}
	if req.Family != Family.ID {
		return 0, unix.EINVAL
	}
	seq, replies := d.handle(req)
	if len(d.stray) > 0 {
		s.queue = append(s.queue, d.stray)
		d.stray = nil
	}
	s.queue = append(s.queue, replies...)
	return seq, nil
}

// Receive returns the next queued datagram. The synthetic driver
// cannot block, so an empty queue is reported as EAGAIN.
func (s *Socket) Receive() ([]genl.Message, error) {
	d := s.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return nil, unix.EBADF
	}
	if d.ReceiveErr != nil {
		return nil, d.ReceiveErr
	}
	if len(s.queue) == 0 {
		return nil, fmt.Errorf("synthetic driver has nothing queued: %w", unix.EAGAIN)
	}
	msgs := s.queue[0]
	s.queue = s.queue[1:]
	return msgs, nil
}

// Ready reports queued datagrams. A pending ReceiveErr also counts, as
// a socket error raises POLLERR.
func (s *Socket) Ready(time.Duration) (bool, error) {
	d := s.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return false, unix.EBADF
	}
	return len(s.queue) > 0 || d.ReceiveErr != nil, nil
}

func (s *Socket) JoinGroup(group uint32) error {
	d := s.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.JoinErr != nil {
		return d.JoinErr
	}
	s.group = group
	return nil
}

// Group returns the multicast group the socket joined, or zero.
func (s *Socket) Group() uint32 {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.group
}

// Pending returns the number of undelivered datagrams.
func (s *Socket) Pending() int {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return len(s.queue)
}

// Closed reports whether Close was called.
func (s *Socket) Closed() bool {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.closed
}

func (s *Socket) Fd() int { return s.fd }

func (s *Socket) Close() error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	s.closed = true
	s.queue = nil
	return nil
}
