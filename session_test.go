package team_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/attr"
	"github.com/frobware/go-team/genl"
	"github.com/frobware/go-team/internal/teamtest"
	"github.com/frobware/go-team/metrics"
)

const teamIfindex = 7

// newDriver returns a driver in the state of the reference scenario:
// one string option "mode" and one port.
func newDriver() *teamtest.Driver {
	d := teamtest.NewDriver(teamIfindex)
	d.Options = []attr.OptionRecord{
		teamtest.StringOption("mode", "roundrobin"),
		teamtest.U32Option("activeport", 0),
	}
	d.Ports = []attr.PortRecord{
		{Ifindex: 12, LinkUp: true, Speed: 1000, Duplex: 1},
	}
	return d
}

func newSession(t *testing.T, d *teamtest.Driver, opts ...team.SessionOption) *team.Session {
	t.Helper()
	links := teamtest.NewLinks(map[uint32]string{teamIfindex: "team0", 12: "eth0"})
	opts = append([]team.SessionOption{
		team.WithBus(d),
		team.WithLinkResolver(links.Resolver()),
	}, opts...)
	s, err := team.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func initSession(t *testing.T, d *teamtest.Driver, opts ...team.SessionOption) *team.Session {
	t.Helper()
	s := newSession(t, d, opts...)
	require.NoError(t, s.Init(teamIfindex))
	return s
}

func commands(reqs []genl.Request) []attr.Command {
	out := make([]attr.Command, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, attr.Command(r.Command))
	}
	return out
}

func TestInit_ReferenceScenario(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)

	mode, err := s.OptionString("mode")
	require.NoError(t, err)
	assert.Equal(t, "roundrobin", mode)

	p := s.NextPort(nil)
	require.NotNil(t, p)
	assert.Equal(t, uint32(12), p.Ifindex)
	assert.True(t, p.LinkUp)
	assert.Equal(t, uint32(1000), p.Speed)
	assert.Equal(t, uint8(1), p.Duplex)
	assert.Nil(t, s.NextPort(p), "single port list must end after the first port")

	assert.Equal(t, []attr.Command{attr.CmdPortListGet, attr.CmdOptionsGet}, commands(d.Requests()))
	for _, r := range d.Requests() {
		assert.Equal(t, teamtest.Family.ID, r.Family)
	}

	socks := d.Sockets()
	require.Len(t, socks, 2)
	assert.Zero(t, socks[0].Group(), "command channel must not join the change group")
	assert.Equal(t, teamtest.Family.Groups[attr.ChangeEventGroup], socks[1].Group())
	assert.Equal(t, socks[1].Fd(), s.EventFd())
	assert.Equal(t, uint32(teamIfindex), s.Ifindex())
}

func TestInit_ZeroIfindex(t *testing.T) {
	d := newDriver()
	s := newSession(t, d)

	require.ErrorIs(t, s.Init(0), team.ErrInvalidIfindex)
	assert.Empty(t, d.Sockets(), "no channel is connected for an invalid ifindex")
	assert.Equal(t, -1, s.EventFd())
}

func TestInit_Twice(t *testing.T) {
	s := initSession(t, newDriver())
	require.ErrorIs(t, s.Init(teamIfindex), team.ErrAlreadyInitialized)
}

func TestInit_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*teamtest.Driver)
		check func(*testing.T, error)
		errIs error
	}{
		{
			name:  "command channel",
			setup: func(d *teamtest.Driver) { d.DialErr = []error{unix.EPROTONOSUPPORT} },
			check: func(t *testing.T, err error) {
				var ce *team.ConnectError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "command", ce.Channel)
			},
			errIs: unix.EPROTONOSUPPORT,
		},
		{
			name:  "event channel",
			setup: func(d *teamtest.Driver) { d.DialErr = []error{nil, unix.ENOMEM} },
			check: func(t *testing.T, err error) {
				var ce *team.ConnectError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "event", ce.Channel)
			},
			errIs: unix.ENOMEM,
		},
		{
			name:  "unknown family",
			setup: func(d *teamtest.Driver) { d.ResolveErr = unix.ENOENT },
			check: func(t *testing.T, err error) {
				var re *team.ResolveError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, "team", re.Name)
			},
			errIs: unix.ENOENT,
		},
		{
			name:  "unknown group",
			setup: func(d *teamtest.Driver) { d.NoGroup = true },
			check: func(t *testing.T, err error) {
				var re *team.ResolveError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, "team/change_event", re.Name)
			},
		},
		{
			name:  "join",
			setup: func(d *teamtest.Driver) { d.JoinErr = unix.EPERM },
			check: func(t *testing.T, err error) {
				var ce *team.ConnectError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "event", ce.Channel)
			},
			errIs: unix.EPERM,
		},
		{
			name:  "port sync",
			setup: func(d *teamtest.Driver) { d.Reject[attr.CmdPortListGet] = unix.ENODEV },
			check: func(t *testing.T, err error) {
				var se *team.SyncError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "port", se.What)
				var pe *team.ProtocolError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, attr.CmdPortListGet, pe.Command)
			},
			errIs: unix.ENODEV,
		},
		{
			name:  "option sync",
			setup: func(d *teamtest.Driver) { d.Reject[attr.CmdOptionsGet] = unix.EINVAL },
			check: func(t *testing.T, err error) {
				var se *team.SyncError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "option", se.What)
			},
			errIs: unix.EINVAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDriver()
			tt.setup(d)
			s := newSession(t, d)

			err := s.Init(teamIfindex)
			require.Error(t, err)
			tt.check(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestInit_PortSyncCompletesBeforeOptionSyncFails(t *testing.T) {
	d := newDriver()
	d.Reject[attr.CmdOptionsGet] = unix.EINVAL
	s := newSession(t, d)

	require.Error(t, s.Init(teamIfindex))
	assert.Len(t, slices.Collect(s.Ports()), 1, "port snapshot from the completed sync stays")
	assert.Empty(t, slices.Collect(s.Options()))
}

func TestCommandsBeforeInit(t *testing.T) {
	s := newSession(t, newDriver())

	assert.ErrorIs(t, s.RefreshPorts(), team.ErrNotInitialized)
	assert.ErrorIs(t, s.SetModeName("lacp"), team.ErrNotInitialized)
	assert.ErrorIs(t, s.CheckEvents(), team.ErrNotInitialized)
	assert.ErrorIs(t, s.ProcessEvents(), team.ErrNotInitialized)
	assert.Nil(t, s.NextPort(nil))
	assert.Nil(t, s.NextOption(nil))
}

func TestOptionGetters(t *testing.T) {
	s := initSession(t, newDriver())

	_, err := s.OptionU32("missing")
	require.ErrorIs(t, err, team.ErrOptionNotFound)

	_, err = s.OptionString("missing")
	require.ErrorIs(t, err, team.ErrOptionNotFound)

	_, err = s.OptionU32("mode")
	require.ErrorIs(t, err, team.ErrTypeNotSupported)

	o := s.OptionByName("activeport")
	require.NotNil(t, o)
	assert.Equal(t, team.OptionTypeU32, o.Type)
	assert.Equal(t, uint32(0), o.Value())
	assert.Nil(t, s.OptionByName("missing"))

	var names []string
	for o := s.NextOption(nil); o != nil; o = s.NextOption(o) {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"mode", "activeport"}, names)
}

func TestSetOptionString_RoundTrip(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)

	const value = "activebackup"
	require.NoError(t, s.SetOptionString("mode", value))

	got, err := s.OptionString("mode")
	require.NoError(t, err)
	assert.Equal(t, value, got)
	assert.Len(t, got, len(value), "no terminator may leak into the value")

	mode, err := s.ModeName()
	require.NoError(t, err)
	assert.Equal(t, value, mode)

	reqs := d.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, attr.CmdOptionsSet, attr.Command(reqs[2].Command))
	assert.Equal(t, attr.CmdOptionsGet, attr.Command(reqs[3].Command))

	// The request carries exactly one option.
	ol, err := attr.DecodeOptionList(reqs[2].Attrs)
	require.NoError(t, err)
	assert.Equal(t, uint32(teamIfindex), ol.Team)
	require.Len(t, ol.Options, 1)
	assert.Equal(t, attr.WireString, ol.Options[0].Type)
	assert.Equal(t, []byte(value), ol.Options[0].Data)
}

func TestSetActivePort(t *testing.T) {
	s := initSession(t, newDriver())

	require.NoError(t, s.SetActivePort(12))
	port, err := s.ActivePort()
	require.NoError(t, err)
	assert.Equal(t, uint32(12), port)
}

func TestSetOption_ProtocolError(t *testing.T) {
	d := newDriver()
	d.Reject[attr.CmdOptionsSet] = unix.EBUSY
	s := initSession(t, d)

	err := s.SetModeName("lacp")
	var pe *team.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, unix.EBUSY, pe.Errno)
	assert.Equal(t, attr.CmdOptionsSet, pe.Command)
	assert.ErrorIs(t, err, unix.EBUSY)

	mode, err := s.ModeName()
	require.NoError(t, err)
	assert.Equal(t, "roundrobin", mode, "rejected set leaves the snapshot alone")
	assert.Len(t, d.Requests(), 3, "no resync after a rejected set")
}

func TestSetOption_UnknownName(t *testing.T) {
	s := initSession(t, newDriver())

	err := s.SetOptionU32("no_such_option", 1)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestSetOption_OverflowSendsNothing(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)
	before := len(d.Requests())

	err := s.SetOptionString("mode", strings.Repeat("x", os.Getpagesize()))
	require.ErrorIs(t, err, team.ErrNoBufferSpace)
	assert.Len(t, d.Requests(), before)
}

func TestReceiveErrorIsReturned(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)

	d.ReceiveErr = unix.ENOBUFS
	err := s.RefreshPorts()
	require.ErrorIs(t, err, unix.ENOBUFS)
}

func TestCommand_ForeignSequenceIgnored(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)

	d.InjectStray(
		teamtest.PortsMessage(1, teamIfindex, attr.PortRecord{Ifindex: 99}),
		genl.Message{Kind: genl.KindError, Seq: 1, Errno: unix.EIO},
	)
	require.NoError(t, s.RefreshPorts())

	ports := slices.Collect(s.Ports())
	require.Len(t, ports, 1)
	assert.Equal(t, uint32(12), ports[0].Ifindex)
}

func TestMultipartOptionReply(t *testing.T) {
	d := newDriver()
	d.MultipartOptions = true
	d.Options = append(d.Options, teamtest.U32Option("mcast_rejoin_count", 3))
	s := initSession(t, d)

	var names []string
	for o := range s.Options() {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"mode", "activeport", "mcast_rejoin_count"}, names)

	// The acknowledgement that trails the multipart reply belongs to
	// an old sequence and must not complete the next command.
	d.Ports = append(d.Ports, attr.PortRecord{Ifindex: 13})
	require.NoError(t, s.RefreshPorts())
	assert.Len(t, slices.Collect(s.Ports()), 2)
}

func TestResync_ReplacesSnapshot(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)

	old := s.NextPort(nil)
	require.NotNil(t, old)

	d.Ports = []attr.PortRecord{{Ifindex: 12, Speed: 10000}, {Ifindex: 13}}
	require.NoError(t, s.RefreshPorts())

	first := s.NextPort(nil)
	require.NotNil(t, first)
	assert.NotSame(t, old, first, "resync creates new records")
	assert.Equal(t, uint32(10000), first.Speed)
	assert.Equal(t, uint32(1000), old.Speed, "records of the old snapshot are not mutated")
	assert.Nil(t, s.NextPort(old), "a stale record is not part of the current list")
}

func TestLinkResolution(t *testing.T) {
	d := newDriver()
	links := teamtest.NewLinks(map[uint32]string{teamIfindex: "team0"})
	s, err := team.New(team.WithBus(d), team.WithLinkResolver(links.Resolver()))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint32(teamIfindex), s.IfnameToIfindex("team0"))
	assert.Zero(t, s.IfnameToIfindex("eth9"))

	// Every lookup refreshes the table first.
	links.Set(21, "eth9")
	assert.Equal(t, uint32(21), s.IfnameToIfindex("eth9"))

	name, err := s.IfindexToIfname(21)
	require.NoError(t, err)
	assert.Equal(t, "eth9", name)

	links.Delete(21)
	_, err = s.IfindexToIfname(21)
	require.Error(t, err)
	assert.Equal(t, 5, links.Calls())

	links.Err = errors.New("rtnetlink unavailable")
	assert.Zero(t, s.IfnameToIfindex("team0"))
	_, err = s.IfindexToIfname(teamIfindex)
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	d := newDriver()
	s := newSession(t, d)
	require.NoError(t, s.Init(teamIfindex))

	require.NoError(t, s.Close())
	for _, sock := range d.Sockets() {
		assert.True(t, sock.Closed())
	}
	assert.Nil(t, s.NextPort(nil))
	assert.Nil(t, s.NextOption(nil))
	assert.Equal(t, -1, s.EventFd())
	assert.Zero(t, s.IfnameToIfindex("team0"))

	require.NoError(t, s.Close(), "closing twice is harmless")
}

func TestWaitEvents(t *testing.T) {
	d := newDriver()
	s := initSession(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.WaitEvents(ctx), context.DeadlineExceeded)

	d.Ports = nil
	d.NotifyPorts()
	require.NoError(t, s.WaitEvents(context.Background()))
	assert.Nil(t, s.NextPort(nil))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.WaitEvents(cancelled), context.Canceled)
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	d := newDriver()
	d.Reject[attr.CmdOptionsSet] = unix.EBUSY
	s := initSession(t, d, team.WithMetrics(m))

	require.Error(t, s.SetModeName("lacp"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("port-list-get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("options-get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("options-set", "EBUSY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ports.WithLabelValues("7")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Options.WithLabelValues("7")))
}
