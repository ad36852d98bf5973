package team

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-team/attr"
)

var (
	// ErrInvalidIfindex is returned by Init for a zero team ifindex.
	ErrInvalidIfindex = errors.New("invalid team interface index")

	// ErrOptionNotFound is returned by typed option getters when no
	// option of that name is in the current snapshot.
	ErrOptionNotFound = errors.New("no such option")

	// ErrHandlerExists is returned when registering a change handler
	// that is already registered.
	ErrHandlerExists = errors.New("change handler already registered")

	// ErrNotInitialized is returned by commands issued before Init.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("session already initialized")

	// ErrTypeNotSupported is returned when an option value type is
	// neither u32 nor string. It is the codec's sentinel.
	ErrTypeNotSupported = attr.ErrTypeNotSupported

	// ErrNoBufferSpace is returned when a command does not fit a single
	// message. It is the codec's sentinel.
	ErrNoBufferSpace = attr.ErrNoBufferSpace
)

// ConnectError is returned when a channel cannot be attached to the
// message bus.
type ConnectError struct {
	Channel string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s channel: %v", e.Channel, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ResolveError is returned when the running kernel does not know the
// team family or its change notification group.
type ResolveError struct {
	Name string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Name, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// ProtocolError is a command rejected by the driver. Errno is the
// driver's error code, unchanged.
type ProtocolError struct {
	Command attr.Command
	Errno   unix.Errno
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s rejected by driver: %v", e.Command, e.Errno)
}

func (e *ProtocolError) Unwrap() error { return e.Errno }

// SyncError is returned by Init when the initial port or option sync
// fails.
type SyncError struct {
	What string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("initial %s sync: %v", e.What, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
