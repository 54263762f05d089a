package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInterruptContext_SignalsCancelThenExit(t *testing.T) {
	exited := make(chan struct{})
	forceExit = func() { close(exited) }
	t.Cleanup(func() { forceExit = func() { os.Exit(130) } })

	ctx, stop := interruptContext(context.Background(), discardLogger())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first SIGINT did not cancel the context")
	}

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not force an exit")
	}
}

func TestInterruptContext_StopCancels(t *testing.T) {
	ctx, stop := interruptContext(context.Background(), discardLogger())

	stop()
	stop()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestInterruptContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())

	ctx, stop := interruptContext(parent, discardLogger())
	defer stop()

	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("parent cancel did not propagate")
	}
}
