package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	ctx, stop := interruptContext(context.Background(), slog.Default())

	err := newRootCmd(newRegistry()).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
