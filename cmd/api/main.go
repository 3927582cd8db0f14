// Package main runs the postsmith HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/di"
	"github.com/works-s/postsmith/internal/di/providers"
)

func main() {
	os.Exit(run())
}

func run() int {
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "postsmith: %v\n", err)
		_ = injector.Shutdown()
		return 1
	}

	log := do.MustInvoke[*providers.LoggerHandle](injector)
	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
	case err := <-srv.Err():
		log.Error("HTTP server stopped unexpectedly", "error", err)
		code = 1
	}
	// A second signal kills the process instead of waiting on a stuck handle.
	stop()

	// do stops handles in reverse dependency order: HTTP first, the store last.
	start := time.Now()
	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown finished with errors", "error", err)
		code = 1
	}
	log.Info("shutdown complete", "took", time.Since(start).Round(time.Millisecond))
	return code
}
