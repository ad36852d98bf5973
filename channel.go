package team

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-team/attr"
	"github.com/frobware/go-team/genl"
)

// channel is one generic netlink socket plus the bookkeeping the
// command path needs. The event channel only uses sock.
type channel struct {
	name    string
	sock    genl.Socket
	seq     uint32
	pending bool
	errno   unix.Errno
}

func (c *channel) onAck()  { c.pending = false }
func (c *channel) onDone() { c.pending = false }

func (c *channel) onError(errno unix.Errno) {
	c.pending = false
	c.errno = errno
}

func (c *channel) close() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}

// sendAndReceive sends one command and blocks until the driver
// acknowledges it, rejects it, or terminates a multipart reply.
// Messages carrying another sequence number are not ours and are
// dropped. onData sees every data message of the reply.
func (s *Session) sendAndReceive(cmd attr.Command, payload []byte, onData func(genl.Message)) (err error) {
	c := s.cmd
	if c.sock == nil {
		return ErrNotInitialized
	}

	start := time.Now()
	defer func() { s.metrics.ObserveCommand(cmd.String(), time.Since(start), err) }()

	seq, err := c.sock.Send(genl.Request{
		Family:  s.family.ID,
		Command: uint8(cmd),
		Version: attr.FamilyVersion,
		Attrs:   payload,
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	c.seq = seq
	c.pending = true
	c.errno = 0

	for c.pending {
		msgs, err := c.sock.Receive()
		if err != nil {
			return fmt.Errorf("receive %s reply: %w", cmd, err)
		}
		for _, m := range msgs {
			if m.Seq != seq {
				s.logger.Debug("dropping reply with foreign sequence",
					"command", cmd, "want", seq, "got", m.Seq)
				continue
			}
			switch m.Kind {
			case genl.KindAck:
				c.onAck()
			case genl.KindDone:
				c.onDone()
			case genl.KindError:
				c.onError(m.Errno)
			case genl.KindData:
				if onData != nil {
					onData(m)
				}
			}
		}
	}

	if c.errno != 0 {
		return &ProtocolError{Command: cmd, Errno: c.errno}
	}
	return nil
}

// handleData decodes one data message into b. It reports whether the
// message concerned this session's team device.
func (s *Session) handleData(m genl.Message, b *snapshot) bool {
	switch attr.Command(m.Command) {
	case attr.CmdPortListGet:
		pl, err := attr.DecodePortList(m.Attrs)
		if err != nil {
			s.codec.Warn("undecodable port list", "error", err)
			return false
		}
		if !s.ours(pl.Header) {
			return false
		}
		s.reportAnomalies("port", pl.Anomalies)
		if !pl.HasList {
			return true
		}
		b.addPorts(pl.Ports)
	case attr.CmdOptionsGet:
		ol, err := attr.DecodeOptionList(m.Attrs)
		if err != nil {
			s.codec.Warn("undecodable option list", "error", err)
			return false
		}
		if !s.ours(ol.Header) {
			return false
		}
		s.reportAnomalies("option", ol.Anomalies)
		if !ol.HasList {
			return true
		}
		for _, name := range b.addOptions(ol.Options) {
			s.codec.Warn("duplicate option in reply, keeping first", "name", name)
			s.metrics.RecordsSkipped("option", 1)
		}
	default:
		s.logger.Debug("ignoring message", "command", attr.Command(m.Command))
		return false
	}
	return true
}

func (s *Session) ours(h attr.Header) bool {
	if !h.HasTeam {
		s.codec.Warn("message without team ifindex")
		return false
	}
	if h.Team != s.ifindex {
		s.logger.Debug("message for another team device", "team", h.Team)
		return false
	}
	return true
}

func (s *Session) reportAnomalies(category string, anomalies []attr.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	for _, a := range anomalies {
		s.codec.Warn("skipping "+category+" record", slog.Int("item", a.Item),
			slog.String("name", a.Name), slog.String("reason", a.Reason))
	}
	s.metrics.RecordsSkipped(category, len(anomalies))
}

// drainEvents receives one batch of change notifications and applies
// it. A batch is one datagram, or every datagram of a multipart
// notification up to its done message; the snapshot is committed once
// the batch is complete. It does not fire handlers.
func (s *Session) drainEvents() error {
	if s.evt.sock == nil {
		return ErrNotInitialized
	}

	var b snapshot
	multi := false
	for {
		msgs, err := s.evt.sock.Receive()
		if err != nil {
			if multi {
				s.logger.Warn("multipart change notification incomplete, discarded", "error", err)
			}
			return fmt.Errorf("receive change events: %w", err)
		}
		for _, m := range msgs {
			switch m.Kind {
			case genl.KindData:
				s.metrics.EventReceived(attr.Command(m.Command).String())
				s.handleData(m, &b)
				if m.Multi {
					multi = true
				}
			case genl.KindDone:
				multi = false
			case genl.KindError:
				s.logger.Warn("error on event channel", "errno", m.Errno)
			}
		}
		if !multi {
			break
		}
	}
	s.commit(&b)
	return nil
}
