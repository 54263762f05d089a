package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// forceExit is replaced in tests.
var forceExit = func() { os.Exit(130) }

// interruptContext derives a context that is canceled by the first SIGINT
// or SIGTERM. A batch stops scheduling new items and in-flight transfers
// remove their partial files. A second signal exits immediately. The
// returned stop function releases the signal handler.
func interruptContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)

		received := 0

		for {
			select {
			case sig := <-sigCh:
				received++
				if received == 1 {
					logger.Info("interrupted, stopping transfers", slog.String("signal", sig.String()))
					cancel()

					continue
				}

				logger.Warn("interrupted again, exiting", slog.String("signal", sig.String()))
				forceExit()

				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once

	stop := func() {
		once.Do(func() { close(done) })
		cancel()
	}

	return ctx, stop
}
