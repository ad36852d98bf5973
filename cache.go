package team

import (
	"github.com/frobware/go-team/attr"
)

// snapshot accumulates the records of one sync. A reply may span
// several messages; the cache is replaced once, when it is complete.
type snapshot struct {
	ports      []*Port
	options    []*Option
	seenPorts  bool
	seenOpts   bool
	portSeen   map[uint32]struct{}
	optionSeen map[string]struct{}
}

// addPorts appends decoded ports. A port already carried by an
// earlier message of the same sync is dropped.
func (b *snapshot) addPorts(recs []attr.PortRecord) {
	b.seenPorts = true
	if b.portSeen == nil {
		b.portSeen = make(map[uint32]struct{}, len(recs))
	}
	for _, r := range recs {
		if _, ok := b.portSeen[r.Ifindex]; ok {
			continue
		}
		b.portSeen[r.Ifindex] = struct{}{}
		b.ports = append(b.ports, &Port{
			Ifindex: r.Ifindex,
			Speed:   r.Speed,
			Duplex:  r.Duplex,
			Changed: r.Changed,
			LinkUp:  r.LinkUp,
		})
	}
}

// addOptions appends decoded options and returns the names dropped
// because an earlier message of the same sync already carried them.
func (b *snapshot) addOptions(recs []attr.OptionRecord) []string {
	b.seenOpts = true
	if b.optionSeen == nil {
		b.optionSeen = make(map[string]struct{}, len(recs))
	}
	var dups []string
	for _, r := range recs {
		if _, ok := b.optionSeen[r.Name]; ok {
			dups = append(dups, r.Name)
			continue
		}
		b.optionSeen[r.Name] = struct{}{}
		b.options = append(b.options, &Option{
			Name:    r.Name,
			Type:    optionTypeOf(r.Type),
			Changed: r.Changed,
			data:    r.Data,
		})
	}
	return dups
}

func (s *Session) replacePorts(ports []*Port) {
	s.ports = ports
	s.metrics.SnapshotReplaced("port", s.ifindex, len(ports))
	s.markDue(PortChange)
}

func (s *Session) replaceOptions(options []*Option) {
	s.options = options
	s.metrics.SnapshotReplaced("option", s.ifindex, len(options))
	s.markDue(OptionChange)
}

// commit installs whatever categories the snapshot carried.
func (s *Session) commit(b *snapshot) {
	if b.seenPorts {
		s.replacePorts(b.ports)
	}
	if b.seenOpts {
		s.replaceOptions(b.options)
	}
}

func (s *Session) findOption(name string) *Option {
	for _, o := range s.options {
		if o.Name == name {
			return o
		}
	}
	return nil
}
