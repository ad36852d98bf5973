// Package lock serialises changes to team devices across teamctl
// processes with an exclusive flock(2) on a shared lock file.
//
// Holding the lock is represented by a Scope, which only Run can hand
// out. teamctl's option setters take a Scope parameter, so a change
// made outside Run does not compile.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Scope is proof that the writer lock is held.
type Scope interface {
	// Path is the lock file.
	Path() string

	// FD returns the locked file descriptor (for logging).
	FD() int

	scopeMarker()
}

type scope struct {
	f *os.File
}

func (*scope) scopeMarker() {}

func (s *scope) Path() string { return s.f.Name() }

func (s *scope) FD() int { return int(s.f.Fd()) }

// Run acquires the lock at path, calls fn, then releases the lock.
// Acquisition retries LOCK_EX|LOCK_NB with exponential backoff until it
// succeeds or ctx is done.
func Run(ctx context.Context, path string, fn func(context.Context, Scope) error) error {
	f, err := acquire(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, &scope{f: f})
}

func acquire(ctx context.Context, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("waiting for %s: %w", path, ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
