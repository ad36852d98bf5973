// Package team is a control-plane client for the Linux team driver.
//
// A Session mirrors the ports and options of one team device over
// generic netlink. Commands are synchronous: each call blocks until the
// driver acknowledges or rejects it. Change notifications arrive on a
// separate event channel which the caller drains from its own loop,
// using EventFd with ProcessEvents, CheckEvents, or WaitEvents.
//
// A Session is not safe for concurrent use.
package team

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/frobware/go-team/attr"
	"github.com/frobware/go-team/genl"
	"github.com/frobware/go-team/linkcache"
	"github.com/frobware/go-team/metrics"
)

// Option names used by the mode and active port accessors.
const (
	ModeOption       = "mode"
	ActivePortOption = "activeport"
)

// Session is a connection to one team device.
type Session struct {
	ID uuid.UUID

	logger  *slog.Logger
	codec   *slog.Logger
	metrics *metrics.Metrics

	bus      Bus
	resolver LinkResolver
	cmd      *channel
	evt      *channel

	family  genl.Family
	group   uint32
	ifindex uint32

	ports    []*Port
	options  []*Option
	handlers []*handlerEntry
}

// New allocates a session. It creates the link resolver but opens no
// channel to the driver until Init.
func New(opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.logger == nil {
		o.logger = discardLogger()
	}
	if o.bus == nil {
		o.bus = genl.Netlink{NetNS: o.netns}
	}
	if o.resolver == nil {
		c, err := linkcache.Open(o.netns)
		if err != nil {
			return nil, fmt.Errorf("create link resolver: %w", err)
		}
		o.resolver = c
	}

	id := uuid.New()
	return &Session{
		ID:       id,
		logger:   o.logger.With("component", "session", "session", id.String()),
		codec:    o.logger.With("component", "codec", "session", id.String()),
		metrics:  o.metrics,
		bus:      o.bus,
		resolver: o.resolver,
		cmd:      &channel{name: "command"},
		evt:      &channel{name: "event"},
	}, nil
}

// Init binds the session to the team device with the given ifindex,
// connects both channels, subscribes to change notifications and
// performs one full port sync followed by one full option sync.
//
// A failed Init is not rolled back; the caller must Close the session.
func (s *Session) Init(ifindex uint32) error {
	if ifindex == 0 {
		return ErrInvalidIfindex
	}
	if s.cmd.sock != nil || s.evt.sock != nil {
		return ErrAlreadyInitialized
	}
	s.ifindex = ifindex
	s.logger = s.logger.With("team", ifindex)
	s.codec = s.codec.With("team", ifindex)

	for _, c := range []*channel{s.cmd, s.evt} {
		sock, err := s.bus.Dial()
		if err != nil {
			return &ConnectError{Channel: c.name, Err: err}
		}
		c.sock = sock
	}

	family, err := s.bus.ResolveFamily(attr.FamilyName)
	if err != nil {
		return &ResolveError{Name: attr.FamilyName, Err: err}
	}
	s.family = family

	group, ok := family.Group(attr.ChangeEventGroup)
	if !ok {
		return &ResolveError{
			Name: attr.FamilyName + "/" + attr.ChangeEventGroup,
			Err:  errors.New("multicast group not found"),
		}
	}
	s.group = group

	if err := s.evt.sock.JoinGroup(group); err != nil {
		return &ConnectError{Channel: s.evt.name, Err: fmt.Errorf("join group %d: %w", group, err)}
	}
	s.logger.Debug("channels connected", "family", family.ID, "group", group)

	if err := s.RefreshPorts(); err != nil {
		return &SyncError{What: "port", Err: err}
	}
	if err := s.RefreshOptions(); err != nil {
		return &SyncError{What: "option", Err: err}
	}
	s.logger.Info("session initialized", "ports", len(s.ports), "options", len(s.options))
	return nil
}

// Close releases the snapshots, the link resolver and both channels,
// in that order.
func (s *Session) Close() error {
	s.ports = nil
	s.options = nil

	var errs []error
	if s.resolver != nil {
		if err := s.resolver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close link resolver: %w", err))
		}
		s.resolver = nil
	}
	for _, c := range []*channel{s.cmd, s.evt} {
		if err := c.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s channel: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Ifindex returns the team device the session is bound to, or zero
// before Init.
func (s *Session) Ifindex() uint32 {
	return s.ifindex
}

// RefreshPorts replaces the port snapshot with the driver's current
// port list and fires due port handlers.
func (s *Session) RefreshPorts() error {
	if err := s.sync(attr.CmdPortListGet, attr.PortListGet); err != nil {
		return err
	}
	s.fireDue(PortChange)
	return nil
}

// RefreshOptions replaces the option snapshot with the driver's
// current options and fires due option handlers.
func (s *Session) RefreshOptions() error {
	if err := s.sync(attr.CmdOptionsGet, attr.OptionsGet); err != nil {
		return err
	}
	s.fireDue(OptionChange)
	return nil
}

func (s *Session) sync(cmd attr.Command, build func(uint32) ([]byte, error)) error {
	if s.ifindex == 0 {
		return ErrNotInitialized
	}
	payload, err := build(s.ifindex)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd, err)
	}
	var b snapshot
	err = s.sendAndReceive(cmd, payload, func(m genl.Message) {
		if attr.Command(m.Command) == cmd {
			s.handleData(m, &b)
		}
	})
	if err != nil {
		return err
	}
	s.commit(&b)
	return nil
}

// NextPort returns the port after p in snapshot order, the first port
// when p is nil, and nil at the end of the list or when p is not part
// of the current snapshot.
func (s *Session) NextPort(p *Port) *Port {
	return next(s.ports, p)
}

// NextOption is NextPort for options.
func (s *Session) NextOption(o *Option) *Option {
	return next(s.options, o)
}

func next[T any](list []*T, cur *T) *T {
	if cur == nil {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	for i, e := range list {
		if e == cur {
			if i+1 < len(list) {
				return list[i+1]
			}
			return nil
		}
	}
	return nil
}

// Ports iterates the current port snapshot. The snapshot iterated is
// the one current when iteration starts.
func (s *Session) Ports() iter.Seq[*Port] {
	return all(s.ports)
}

// Options iterates the current option snapshot.
func (s *Session) Options() iter.Seq[*Option] {
	return all(s.options)
}

func all[T any](list []*T) iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for _, e := range list {
			if !yield(e) {
				return
			}
		}
	}
}

// OptionByName returns the named option from the current snapshot, or
// nil.
func (s *Session) OptionByName(name string) *Option {
	return s.findOption(name)
}

func (s *Session) typedOption(name string, want OptionType) (*Option, error) {
	o := s.findOption(name)
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrOptionNotFound, name)
	}
	if o.Type != want {
		return nil, fmt.Errorf("option %s is %s, not %s: %w", name, o.Type, want, ErrTypeNotSupported)
	}
	return o, nil
}

// OptionU32 returns the value of a u32 option.
func (s *Session) OptionU32(name string) (uint32, error) {
	o, err := s.typedOption(name, OptionTypeU32)
	if err != nil {
		return 0, err
	}
	return o.U32(), nil
}

// OptionString returns the value of a string option.
func (s *Session) OptionString(name string) (string, error) {
	o, err := s.typedOption(name, OptionTypeString)
	if err != nil {
		return "", err
	}
	return o.Str(), nil
}

// SetOptionU32 sets a u32 option.
func (s *Session) SetOptionU32(name string, v uint32) error {
	return s.setOption(name, v)
}

// SetOptionString sets a string option.
func (s *Session) SetOptionString(name, v string) error {
	return s.setOption(name, v)
}

// setOption sends one OPTIONS_SET and, once the driver accepts it,
// resyncs the option snapshot so the new value is visible to getters.
func (s *Session) setOption(name string, value any) error {
	if s.ifindex == 0 {
		return ErrNotInitialized
	}
	payload, err := attr.OptionSet(s.ifindex, name, value)
	if err != nil {
		return fmt.Errorf("encode option %s: %w", name, err)
	}
	if err := s.sendAndReceive(attr.CmdOptionsSet, payload, nil); err != nil {
		return err
	}
	s.logger.Debug("option set", "name", name, "value", value)
	if err := s.RefreshOptions(); err != nil {
		return fmt.Errorf("resync options after setting %s: %w", name, err)
	}
	return nil
}

// ModeName returns the name of the team mode.
func (s *Session) ModeName() (string, error) {
	return s.OptionString(ModeOption)
}

// SetModeName changes the team mode. The driver refuses while ports
// are attached.
func (s *Session) SetModeName(name string) error {
	return s.SetOptionString(ModeOption, name)
}

// ActivePort returns the ifindex of the active port.
func (s *Session) ActivePort() (uint32, error) {
	return s.OptionU32(ActivePortOption)
}

// SetActivePort makes the port with the given ifindex active.
func (s *Session) SetActivePort(ifindex uint32) error {
	return s.SetOptionU32(ActivePortOption, ifindex)
}

// IfnameToIfindex refreshes the link table and returns the ifindex of
// the named interface, or zero when there is none.
func (s *Session) IfnameToIfindex(name string) uint32 {
	if s.resolver == nil {
		return 0
	}
	if err := s.resolver.Refill(); err != nil {
		s.logger.Warn("link table refresh failed", "error", err)
		return 0
	}
	idx, _ := s.resolver.NameToIndex(name)
	return idx
}

// IfindexToIfname refreshes the link table and returns the name of
// the interface with the given ifindex.
func (s *Session) IfindexToIfname(ifindex uint32) (string, error) {
	if s.resolver == nil {
		return "", ErrNotInitialized
	}
	if err := s.resolver.Refill(); err != nil {
		return "", err
	}
	name, ok := s.resolver.IndexToName(ifindex)
	if !ok {
		return "", fmt.Errorf("no interface with index %d", ifindex)
	}
	return name, nil
}
