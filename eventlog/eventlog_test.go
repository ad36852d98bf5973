package eventlog_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/attr"
	"github.com/frobware/go-team/eventlog"
	"github.com/frobware/go-team/internal/teamtest"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

func TestRecorder_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	rec, err := eventlog.Create(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(eventlog.Event{
		Time: epoch, Team: 7, Category: eventlog.CategoryPort,
		Ports: []eventlog.Port{{Ifindex: 12, LinkUp: true, Speed: 1000, Duplex: 1}},
	}))
	require.NoError(t, rec.Close())

	// A second run appends.
	rec, err = eventlog.Create(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(eventlog.Event{
		Time: epoch.Add(time.Second), Team: 7, Category: eventlog.CategoryOption,
		Options: []eventlog.Option{{Name: "mode", Type: "string", String: "lacp"}},
	}))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	require.ErrorIs(t, rec.Record(eventlog.Event{}), eventlog.ErrClosed)

	r, err := eventlog.Open(path, eventlog.Filter{})
	require.NoError(t, err)
	defer r.Close()

	ev, err := r.Next()
	require.NoError(t, err)
	assert.True(t, epoch.Equal(ev.Time), "nanosecond timestamps survive")
	assert.Equal(t, eventlog.CategoryPort, ev.Category)
	require.Len(t, ev.Ports, 1)
	assert.True(t, ev.Ports[0].LinkUp)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Len(t, ev.Options, 1)
	assert.Equal(t, "lacp", ev.Options[0].Value())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_Filter(t *testing.T) {
	var buf bytes.Buffer
	enc := eventlog.NewEncoder(&buf)
	for _, ev := range []eventlog.Event{
		{Team: 7, Category: eventlog.CategoryPort},
		{Team: 8, Category: eventlog.CategoryPort},
		{Team: 7, Category: eventlog.CategoryOption},
	} {
		require.NoError(t, enc.Encode(ev))
	}

	r := eventlog.NewReader(bytes.NewReader(buf.Bytes()), eventlog.Filter{Team: 7, Category: eventlog.CategoryOption})
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), ev.Team)
	assert.Equal(t, eventlog.CategoryOption, ev.Category)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, r.Close())
}

func TestReader_Truncated(t *testing.T) {
	b, err := eventlog.Encode(eventlog.Event{Team: 7, Category: eventlog.CategoryPort})
	require.NoError(t, err)

	r := eventlog.NewReader(bytes.NewReader(b[:len(b)-1]), eventlog.Filter{})
	_, err = r.Next()
	require.Error(t, err)
	assert.False(t, errors.Is(err, io.EOF), "a torn record is not a clean end")
}

func TestHandlers_RecordSnapshots(t *testing.T) {
	d := teamtest.NewDriver(7)
	d.Ports = []attr.PortRecord{{Ifindex: 12, LinkUp: true}}
	d.Options = []attr.OptionRecord{
		teamtest.StringOption("mode", "activebackup"),
		teamtest.U32Option("activeport", 12),
	}
	links := teamtest.NewLinks(nil)
	s, err := team.New(team.WithBus(d), team.WithLinkResolver(links.Resolver()))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(7))

	path := filepath.Join(t.TempDir(), "events.cbor")
	rec, err := eventlog.Create(path)
	require.NoError(t, err)
	for _, h := range eventlog.Handlers(rec, func() time.Time { return epoch }, func(err error) { t.Error(err) }) {
		require.NoError(t, s.RegisterChangeHandler(h))
	}

	d.Ports = append(d.Ports, attr.PortRecord{Ifindex: 13})
	d.NotifyPorts()
	d.NotifyOptions()
	require.NoError(t, s.CheckEvents())
	require.NoError(t, rec.Close())

	r, err := eventlog.Open(path, eventlog.Filter{})
	require.NoError(t, err)
	defer r.Close()

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, eventlog.CategoryPort, ev.Category)
	assert.Equal(t, s.ID.String(), ev.SessionID)
	assert.Len(t, ev.Ports, 2)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, eventlog.CategoryOption, ev.Category)
	require.Len(t, ev.Options, 2)
	assert.Equal(t, "activebackup", ev.Options[0].Value())
	assert.Equal(t, uint32(12), ev.Options[1].Value())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
