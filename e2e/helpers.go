//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/logging"
)

var devSeq atomic.Uint32

// TestEnv is a team device in the current network namespace, removed
// when the test ends, plus a session bound to it.
type TestEnv struct {
	T       *testing.T
	Team    netlink.Link
	Session *team.Session
	logger  *slog.Logger
	ports   []netlink.Link
}

// NewTestEnv creates a team device with a unique name and initialises
// a session on it. TEAM_LOG controls session logging (e.g.
// TEAM_LOG=debug,codec=trace).
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	RequireTeamDriver(t)

	logger, err := logging.FromEnv()
	require.NoError(t, err)

	name := devName("tm")
	link := &netlink.GenericLink{LinkAttrs: netlink.LinkAttrs{Name: name}, LinkType: "team"}
	require.NoError(t, netlink.LinkAdd(link), "create team device %s", name)

	e := &TestEnv{T: t, logger: logger}
	t.Cleanup(e.cleanup)

	e.Team, err = netlink.LinkByName(name)
	require.NoError(t, err)

	e.Session, err = team.New(team.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, e.Session.Init(uint32(e.Team.Attrs().Index)))
	return e
}

func (e *TestEnv) cleanup() {
	if e.Session != nil {
		if err := e.Session.Close(); err != nil {
			e.T.Logf("close session: %v", err)
		}
	}
	for _, p := range e.ports {
		if err := netlink.LinkDel(p); err != nil {
			e.T.Logf("delete port %s: %v", p.Attrs().Name, err)
		}
	}
	if e.Team != nil {
		if err := netlink.LinkDel(e.Team); err != nil {
			e.T.Logf("delete team %s: %v", e.Team.Attrs().Name, err)
		}
	}
}

// AddPort creates a dummy link and enslaves it to the team device. The
// port is left down.
func (e *TestEnv) AddPort() netlink.Link {
	e.T.Helper()
	name := devName("tp")
	d := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name}}
	require.NoError(e.T, netlink.LinkAdd(d))
	link, err := netlink.LinkByName(name)
	require.NoError(e.T, err)
	e.ports = append(e.ports, link)
	require.NoError(e.T, netlink.LinkSetMaster(link, e.Team), "enslave %s", name)
	return link
}

// WaitFor processes notifications until cond holds or timeout expires.
func (e *TestEnv) WaitFor(timeout time.Duration, cond func(*team.Session) bool) {
	e.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for !cond(e.Session) {
		if err := e.Session.WaitEvents(ctx); err != nil {
			e.T.Fatalf("condition not met: %v", err)
		}
	}
}

// RequireRoot fails the test if not running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Fatal("test requires root privileges")
	}
}

// RequireTeamDriver fails the test if the team module is not loaded
// and cannot be loaded on demand by creating a device.
func RequireTeamDriver(t *testing.T) {
	t.Helper()
	RequireRoot(t)
	if _, err := os.Stat("/sys/module/team"); err == nil {
		return
	}
	probe := &netlink.GenericLink{LinkAttrs: netlink.LinkAttrs{Name: devName("tq")}, LinkType: "team"}
	if err := netlink.LinkAdd(probe); err != nil {
		t.Fatalf("team driver unavailable (modprobe team): %v", err)
	}
	_ = netlink.LinkDel(probe)
}

func devName(prefix string) string {
	return fmt.Sprintf("%s%d-%d", prefix, os.Getpid()%100000, devSeq.Add(1))
}

func hasPort(s *team.Session, ifindex int) bool {
	for p := range s.Ports() {
		if p.Ifindex == uint32(ifindex) {
			return true
		}
	}
	return false
}

func optionNames(s *team.Session) string {
	var names []string
	for o := range s.Options() {
		names = append(names, o.Name)
	}
	return strings.Join(names, ",")
}
