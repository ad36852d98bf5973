package team

type handlerEntry struct {
	h   *ChangeHandler
	due bool
}

func (t ChangeType) matches(c ChangeType) bool {
	return t == AllChange || c == AllChange || t == c
}

// RegisterChangeHandler adds h in front of the handlers already
// registered. Registering the same pointer twice returns
// ErrHandlerExists.
func (s *Session) RegisterChangeHandler(h *ChangeHandler) error {
	for _, e := range s.handlers {
		if e.h == h {
			return ErrHandlerExists
		}
	}
	s.handlers = append([]*handlerEntry{{h: h}}, s.handlers...)
	return nil
}

// UnregisterChangeHandler removes h. Removing a handler that is not
// registered does nothing.
func (s *Session) UnregisterChangeHandler(h *ChangeHandler) {
	for i, e := range s.handlers {
		if e.h == h {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

func (s *Session) markDue(c ChangeType) {
	for _, e := range s.handlers {
		if e.h.Type.matches(c) {
			e.due = true
		}
	}
}

// fireDue runs every matching handler marked due and clears its flag
// before the call. Handlers may unregister themselves or others.
func (s *Session) fireDue(c ChangeType) {
	handlers := append([]*handlerEntry(nil), s.handlers...)
	for _, e := range handlers {
		if !e.due || !e.h.Type.matches(c) {
			continue
		}
		e.due = false
		if !s.registered(e) {
			continue
		}
		s.metrics.HandlerFired(e.h.Type.String())
		if e.h.Func != nil {
			e.h.Func(s)
		}
	}
}

func (s *Session) registered(e *handlerEntry) bool {
	for _, r := range s.handlers {
		if r == e {
			return true
		}
	}
	return false
}
