package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/frobware/go-team/eventlog"
)

// ReplayCmd prints the events in a recording made by monitor.
type ReplayCmd struct {
	OutputFlags

	Path     string `arg:"" help:"Recording to read." type:"existingfile"`
	Ifindex  uint32 `name:"ifindex" help:"Only events for this team ifindex."`
	Category string `help:"Only events of this category: port or option."`
}

// EventView is the rendered form of a recorded event.
type EventView struct {
	Time     time.Time    `json:"time" yaml:"time"`
	Session  string       `json:"session" yaml:"session"`
	Team     uint32       `json:"team" yaml:"team"`
	Category string       `json:"category" yaml:"category"`
	Ports    []PortView   `json:"ports,omitempty" yaml:"ports,omitempty"`
	Options  []OptionView `json:"options,omitempty" yaml:"options,omitempty"`
}

func newEventView(ev eventlog.Event) EventView {
	v := EventView{
		Time:     ev.Time,
		Session:  ev.SessionID,
		Team:     ev.Team,
		Category: ev.Category.String(),
	}
	for _, p := range ev.Ports {
		v.Ports = append(v.Ports, PortView{
			Ifindex: p.Ifindex,
			LinkUp:  p.LinkUp,
			Speed:   p.Speed,
			Duplex:  duplexName(p.Duplex),
			Changed: p.Changed,
		})
	}
	for _, o := range ev.Options {
		v.Options = append(v.Options, OptionView{
			Name:    o.Name,
			Type:    o.Type,
			Value:   o.Value(),
			Changed: o.Changed,
		})
	}
	return v
}

func (c *ReplayCmd) filter() (eventlog.Filter, error) {
	f := eventlog.Filter{Team: c.Ifindex}
	switch c.Category {
	case "":
	case "port":
		f.Category = eventlog.CategoryPort
	case "option":
		f.Category = eventlog.CategoryOption
	default:
		return f, fmt.Errorf("unknown category %q (want port or option)", c.Category)
	}
	return f, nil
}

// Run executes the replay command.
func (c *ReplayCmd) Run(cli *CLI) error {
	filter, err := c.filter()
	if err != nil {
		return err
	}
	r, err := eventlog.Open(c.Path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	events := []EventView{}
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: event %d: %w", c.Path, len(events)+1, err)
		}
		events = append(events, newEventView(ev))
	}

	out, err := Render(events, &c.OutputFlags, eventTable(events))
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}

func eventTable(events []EventView) func(io.Writer) {
	return func(out io.Writer) {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTEAM\tCATEGORY\tSTATE")
		for _, ev := range events {
			var state []string
			for _, p := range ev.Ports {
				link := "down"
				if p.LinkUp {
					link = "up"
				}
				state = append(state, fmt.Sprintf("%d:%s", p.Ifindex, link))
			}
			for _, o := range ev.Options {
				state = append(state, fmt.Sprintf("%s=%v", o.Name, o.Value))
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				ev.Time.Format(time.RFC3339), ev.Team, ev.Category, strings.Join(state, " "))
		}
		w.Flush()
	}
}
