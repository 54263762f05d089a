package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/gdrive-go/internal/mimetable"
	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/remote/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// closingStore records Close calls.
type closingStore struct {
	*memstore.Store
	closed int
}

func (c *closingStore) Close() error {
	c.closed++
	return nil
}

func countingOpener(store remote.Store) (Opener, *int) {
	var n int

	return func(context.Context) (remote.Store, error) {
		n++
		return store, nil
	}, &n
}

func TestEnsureActive_InitializesLazily(t *testing.T) {
	store := memstore.New()
	open, opens := countingOpener(store)
	s := New(open, nil, discardLogger())

	assert.Equal(t, Uninitialized, s.State())

	h, err := s.EnsureActive(t.Context())
	require.NoError(t, err)
	assert.Same(t, store, h.Store)
	assert.Same(t, mimetable.Default(), h.Types)
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 1, *opens)
}

func TestInitialize_IdempotentWhileActive(t *testing.T) {
	open, opens := countingOpener(memstore.New())
	s := New(open, nil, discardLogger())

	require.NoError(t, s.Initialize(t.Context()))
	require.NoError(t, s.Initialize(t.Context()))

	_, err := s.EnsureActive(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, *opens)
}

func TestTerminate_IsFinal(t *testing.T) {
	open, opens := countingOpener(memstore.New())
	s := New(open, nil, discardLogger())

	require.NoError(t, s.Initialize(t.Context()))
	require.NoError(t, s.Terminate())
	assert.Equal(t, Terminated, s.State())

	assert.ErrorIs(t, s.Initialize(t.Context()), ErrSessionClosed)

	_, err := s.EnsureActive(t.Context())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 1, *opens, "no reconnect after terminate")
}

func TestTerminate_Idempotent(t *testing.T) {
	cs := &closingStore{Store: memstore.New()}
	s := New(func(context.Context) (remote.Store, error) { return cs, nil }, nil, discardLogger())

	require.NoError(t, s.Initialize(t.Context()))
	require.NoError(t, s.Terminate())
	require.NoError(t, s.Terminate())
	assert.Equal(t, 1, cs.closed)
}

func TestTerminate_UninitializedIsNoOp(t *testing.T) {
	open, _ := countingOpener(memstore.New())
	s := New(open, nil, discardLogger())

	require.NoError(t, s.Terminate())
	assert.Equal(t, Uninitialized, s.State())

	// Still lazily initializable.
	_, err := s.EnsureActive(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Active, s.State())
}

func TestEnsureActive_OpenFailureLeavesUninitialized(t *testing.T) {
	boom := errors.New("no credentials")
	calls := 0
	s := New(func(context.Context) (remote.Store, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}

		return memstore.New(), nil
	}, nil, discardLogger())

	_, err := s.EnsureActive(t.Context())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Uninitialized, s.State())

	_, err = s.EnsureActive(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Active, s.State())
}

func TestEnsureActive_TableFailure(t *testing.T) {
	open, opens := countingOpener(memstore.New())
	s := New(open, func() (*mimetable.Table, error) {
		return mimetable.Parse(strings.NewReader("garbage\n"), "#")
	}, discardLogger())

	_, err := s.EnsureActive(t.Context())

	var pe *mimetable.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, *opens, "store is not opened when the table is bad")
}

func TestTerminate_NoRemoteCallsAfterwards(t *testing.T) {
	store := memstore.New()
	open, _ := countingOpener(store)
	s := New(open, nil, discardLogger())

	require.NoError(t, s.Initialize(t.Context()))
	require.NoError(t, s.Terminate())

	for range 3 {
		_, err := s.EnsureActive(t.Context())
		assert.ErrorIs(t, err, ErrSessionClosed)
	}

	assert.Zero(t, store.Calls())
}

func TestSession_ConcurrentEnsureActive(t *testing.T) {
	open, opens := countingOpener(memstore.New())
	s := New(open, nil, discardLogger())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := s.EnsureActive(context.Background())
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, *opens)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "State(7)", State(7).String())
}
