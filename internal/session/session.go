// Package session guards access to the remote store. A session opens the
// store and loads the MIME table once, hands both out while active, and
// refuses all work after it has been terminated.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tonimelisma/gdrive-go/internal/mimetable"
	"github.com/tonimelisma/gdrive-go/internal/remote"
)

// ErrSessionClosed is returned by every operation after Terminate.
var ErrSessionClosed = errors.New("session: closed")

// State is the lifecycle state of a Session.
type State int

// Lifecycle states. Terminated is final.
const (
	Uninitialized State = iota
	Active
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Opener connects to the remote store.
type Opener func(ctx context.Context) (remote.Store, error)

// TableLoader loads the MIME table.
type TableLoader func() (*mimetable.Table, error)

// Handle is what an active session hands out.
type Handle struct {
	Store remote.Store
	Types *mimetable.Table
}

// Session is an initialize-once, terminate-once state machine. All methods
// are safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	state  State
	handle Handle
	open   Opener
	load   TableLoader
	logger *slog.Logger
}

// New creates an uninitialized session. A nil loader uses the built-in
// MIME table.
func New(open Opener, load TableLoader, logger *slog.Logger) *Session {
	if load == nil {
		load = func() (*mimetable.Table, error) { return mimetable.Default(), nil }
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Session{open: open, load: load, logger: logger}
}

// Initialize opens the store and loads the MIME table. It is a no-op while
// active and fails with ErrSessionClosed after Terminate. A failed
// initialization leaves the session uninitialized so it can be retried.
func (s *Session) Initialize(ctx context.Context) error {
	_, err := s.EnsureActive(ctx)

	return err
}

// EnsureActive returns the session handle, initializing lazily on first use.
func (s *Session) EnsureActive(ctx context.Context) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Active:
		return s.handle, nil
	case Terminated:
		return Handle{}, ErrSessionClosed
	}

	types, err := s.load()
	if err != nil {
		return Handle{}, fmt.Errorf("session: loading MIME table: %w", err)
	}

	store, err := s.open(ctx)
	if err != nil {
		return Handle{}, fmt.Errorf("session: opening remote store: %w", err)
	}

	s.handle = Handle{Store: store, Types: types}
	s.state = Active

	s.logger.Debug("session initialized", slog.Int("mime_rules", types.Len()))

	return s.handle, nil
}

// Terminate releases the store and the MIME table. Terminating an active
// session is final. Terminating an uninitialized or already terminated
// session does nothing.
func (s *Session) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return nil
	}

	var err error
	if c, ok := s.handle.Store.(io.Closer); ok {
		err = c.Close()
	}

	s.handle = Handle{}
	s.state = Terminated

	s.logger.Debug("session terminated")

	if err != nil {
		return fmt.Errorf("session: closing remote store: %w", err)
	}

	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}
