// Package metrics exposes Prometheus collectors for team sessions.
//
// A nil *Metrics is valid and records nothing, so sessions created
// without metrics pay no cost.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"
)

const namespace = "team"

// Metrics holds the session collectors.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Events          *prometheus.CounterVec
	Syncs           *prometheus.CounterVec
	DecodeSkips     *prometheus.CounterVec
	HandlersFired   *prometheus.CounterVec
	Ports           *prometheus.GaugeVec
	Options         *prometheus.GaugeVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "total",
				Help:      "Commands sent to the team driver by result",
			},
			[]string{"command", "result"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "duration_seconds",
				Help:      "Time from send to acknowledgement",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"command"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Change notifications received on the event channel",
			},
			[]string{"command"},
		),
		Syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "replacements_total",
				Help:      "Snapshot replacements by category",
			},
			[]string{"category"},
		),
		DecodeSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "skipped_records_total",
				Help:      "Malformed or duplicate records dropped while decoding",
			},
			[]string{"category"},
		),
		HandlersFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handlers",
				Name:      "fired_total",
				Help:      "Change handler invocations by handler category",
			},
			[]string{"category"},
		),
		Ports: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ports",
				Help:      "Ports in the current snapshot",
			},
			[]string{"team"},
		),
		Options: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "options",
				Help:      "Options in the current snapshot",
			},
			[]string{"team"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Commands, m.CommandDuration, m.Events, m.Syncs,
		m.DecodeSkips, m.HandlersFired, m.Ports, m.Options,
	}
}

// Register registers every collector with r. Collectors already
// registered by an earlier call are tolerated.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCommand records one command round trip.
func (m *Metrics) ObserveCommand(command string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, result(err)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return name
		}
	}
	return "error"
}

// EventReceived counts one notification message.
func (m *Metrics) EventReceived(command string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(command).Inc()
}

// SnapshotReplaced records a cache replacement of n entries.
func (m *Metrics) SnapshotReplaced(category string, team uint32, n int) {
	if m == nil {
		return
	}
	m.Syncs.WithLabelValues(category).Inc()
	label := strconv.FormatUint(uint64(team), 10)
	switch category {
	case "port":
		m.Ports.WithLabelValues(label).Set(float64(n))
	case "option":
		m.Options.WithLabelValues(label).Set(float64(n))
	}
}

// RecordsSkipped counts records dropped by the decoder.
func (m *Metrics) RecordsSkipped(category string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DecodeSkips.WithLabelValues(category).Add(float64(n))
}

// HandlerFired counts one change handler invocation.
func (m *Metrics) HandlerFired(category string) {
	if m == nil {
		return
	}
	m.HandlersFired.WithLabelValues(category).Inc()
}

// Handler returns an HTTP handler exposing the registry in the
// Prometheus text and OpenMetrics formats.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
