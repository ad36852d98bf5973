package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/eventlog"
	"github.com/frobware/go-team/metrics"
)

// MonitorCmd prints every port and option change until interrupted.
type MonitorCmd struct {
	MetricsAddress string `name:"metrics-address" help:"Serve Prometheus metrics on this address (overrides monitor.metrics_address)."`
	Record         string `help:"Append change events to this file (overrides monitor.record)."`
	Count          int    `help:"Exit after this many change batches. Zero runs until interrupted." default:"0"`
}

// Run executes the monitor command.
func (c *MonitorCmd) Run(cli *CLI, ctx context.Context) error {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return err
	}

	rt, err := cli.Open(true, m)
	if err != nil {
		return err
	}
	defer rt.Close()
	s := rt.Session
	logger := rt.Logger.With("component", "monitor")

	addr := c.MetricsAddress
	if addr == "" {
		addr = rt.Config.Monitor.MetricsAddress
	}
	if addr != "" {
		stop, bound, err := serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer stop()
		logger.Info("serving metrics", "address", bound)
	}

	path := c.Record
	if path == "" {
		path = rt.Config.Monitor.Record
	}
	if path != "" {
		rec, err := eventlog.Create(path)
		if err != nil {
			return err
		}
		defer rec.Close()
		for _, h := range eventlog.Handlers(rec, time.Now, func(err error) {
			logger.Warn("recording failed", "path", path, "error", err)
		}) {
			if err := s.RegisterChangeHandler(h); err != nil {
				return err
			}
		}
		logger.Info("recording changes", "path", path)
	}

	var writeErr error
	batches := 0
	printer := &team.ChangeHandler{Type: team.AllChange, Func: func(s *team.Session) {
		batches++
		if writeErr == nil {
			writeErr = cli.PrintOut(formatState(s))
		}
	}}
	if err := s.RegisterChangeHandler(printer); err != nil {
		return err
	}

	if err := cli.PrintOut(formatState(s)); err != nil {
		return err
	}
	logger.Info("monitoring", "team", s.Ifindex(), "session", s.ID)

	for c.Count == 0 || batches < c.Count {
		err := s.WaitEvents(ctx)
		if writeErr != nil {
			return writeErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("monitor stopped", "batches", batches)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return writeErr
}

// formatState renders the session snapshot as two lines.
func formatState(s *team.Session) string {
	var b strings.Builder
	b.WriteString("ports:")
	for p := range s.Ports() {
		state := "down"
		if p.LinkUp {
			state = "up"
		}
		fmt.Fprintf(&b, " %d", p.Ifindex)
		if name, err := s.IfindexToIfname(p.Ifindex); err == nil {
			fmt.Fprintf(&b, "(%s)", name)
		}
		fmt.Fprintf(&b, " %s %dMb/s %s", state, p.Speed, duplexName(p.Duplex))
		if p.Changed {
			b.WriteString(" *")
		}
		b.WriteString(";")
	}
	b.WriteString("\noptions:")
	for o := range s.Options() {
		fmt.Fprintf(&b, " %s", o)
		if o.Changed {
			b.WriteString(" *")
		}
		b.WriteString(";")
	}
	b.WriteString("\n")
	return b.String()
}

// serveMetrics starts an HTTP server exposing g on /metrics. The
// returned function shuts it down.
func serveMetrics(addr string, g prometheus.Gatherer) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, ln.Addr().String(), nil
}
