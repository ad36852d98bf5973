package team

import (
	"context"
	"time"
)

// waitSlice bounds each readiness poll in WaitEvents so cancellation
// is noticed.
const waitSlice = 100 * time.Millisecond

// EventFd returns the pollable descriptor of the event channel, or -1
// before Init.
func (s *Session) EventFd() int {
	if s.evt.sock == nil {
		return -1
	}
	return s.evt.sock.Fd()
}

// ProcessEvents receives one batch of change notifications, applies it
// to the snapshots and fires every handler made due by it. It blocks
// when nothing is pending; call it once the descriptor from EventFd is
// readable.
func (s *Session) ProcessEvents() error {
	if err := s.drainEvents(); err != nil {
		return err
	}
	s.fireDue(AllChange)
	return nil
}

// CheckEvents processes notifications until the event channel has
// nothing more to read. It never blocks waiting for new ones.
func (s *Session) CheckEvents() error {
	if s.evt.sock == nil {
		return ErrNotInitialized
	}
	for {
		ready, err := s.evt.sock.Ready(0)
		if err != nil {
			return err
		}
		if !ready {
			return nil
		}
		if err := s.ProcessEvents(); err != nil {
			return err
		}
	}
}

// WaitEvents blocks until at least one notification is pending or ctx
// is done, then behaves like CheckEvents.
func (s *Session) WaitEvents(ctx context.Context) error {
	if s.evt.sock == nil {
		return ErrNotInitialized
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		timeout := waitSlice
		if d, ok := ctx.Deadline(); ok {
			if left := time.Until(d); left < timeout {
				timeout = max(left, 0)
			}
		}
		ready, err := s.evt.sock.Ready(timeout)
		if err != nil {
			return err
		}
		if ready {
			return s.CheckEvents()
		}
	}
}
