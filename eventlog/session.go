package eventlog

import (
	"time"

	team "github.com/frobware/go-team"
)

// FromSession captures the snapshot of category c held by s.
func FromSession(s *team.Session, c Category, at time.Time) Event {
	ev := Event{
		Time:      at,
		SessionID: s.ID.String(),
		Team:      s.Ifindex(),
		Category:  c,
	}
	switch c {
	case CategoryPort:
		for p := range s.Ports() {
			ev.Ports = append(ev.Ports, Port{
				Ifindex: p.Ifindex,
				Speed:   p.Speed,
				Duplex:  p.Duplex,
				Changed: p.Changed,
				LinkUp:  p.LinkUp,
			})
		}
	case CategoryOption:
		for o := range s.Options() {
			ev.Options = append(ev.Options, Option{
				Name:    o.Name,
				Type:    o.Type.String(),
				U32:     o.U32(),
				String:  o.Str(),
				Changed: o.Changed,
			})
		}
	}
	return ev
}

// Handlers returns change handlers that record every port and option
// snapshot of the session they are registered with. Errors from rec
// are passed to onErr, which may be nil.
func Handlers(rec *Recorder, now func() time.Time, onErr func(error)) []*team.ChangeHandler {
	if now == nil {
		now = time.Now
	}
	record := func(c Category) func(*team.Session) {
		return func(s *team.Session) {
			if err := rec.Record(FromSession(s, c, now())); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
	return []*team.ChangeHandler{
		{Type: team.PortChange, Func: record(CategoryPort)},
		{Type: team.OptionChange, Func: record(CategoryOption)},
	}
}
