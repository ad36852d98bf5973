package team

import (
	"io"
	"log/slog"

	"github.com/frobware/go-team/genl"
	"github.com/frobware/go-team/metrics"
)

// Bus opens channels to the kernel message bus and resolves generic
// netlink families. genl.Netlink is the production implementation.
type Bus interface {
	Dial() (genl.Socket, error)
	ResolveFamily(name string) (genl.Family, error)
}

// LinkResolver maps interface names to indexes and back. Lookups only
// see the link table as of the last Refill. *linkcache.Cache
// implements it.
type LinkResolver interface {
	Refill() error
	NameToIndex(name string) (uint32, bool)
	IndexToName(ifindex uint32) (string, bool)
	Close() error
}

// SessionOption configures New.
type SessionOption interface {
	apply(*sessionOptions)
}

type sessionOptions struct {
	logger   *slog.Logger
	bus      Bus
	resolver LinkResolver
	metrics  *metrics.Metrics
	netns    string
}

type funcOption func(*sessionOptions)

func (f funcOption) apply(o *sessionOptions) { f(o) }

// WithLogger sets the logger for session operations.
// If not specified, a no-op logger is used.
func WithLogger(l *slog.Logger) SessionOption {
	return funcOption(func(o *sessionOptions) { o.logger = l })
}

// WithBus replaces the generic netlink transport.
func WithBus(b Bus) SessionOption {
	return funcOption(func(o *sessionOptions) { o.bus = b })
}

// WithLinkResolver replaces the rtnetlink link cache. The session
// takes ownership and closes it on Close.
func WithLinkResolver(r LinkResolver) SessionOption {
	return funcOption(func(o *sessionOptions) { o.resolver = r })
}

// WithMetrics records session activity into m.
func WithMetrics(m *metrics.Metrics) SessionOption {
	return funcOption(func(o *sessionOptions) { o.metrics = m })
}

// WithNetNS creates the default transport and link cache inside the
// network namespace at path. It has no effect on a Bus or LinkResolver
// supplied explicitly.
func WithNetNS(path string) SessionOption {
	return funcOption(func(o *sessionOptions) { o.netns = path })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
