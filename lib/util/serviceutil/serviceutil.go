package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is canceled on the first SIGINT or SIGTERM so a command
// can still write its sessions, a second signal exits right away.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Info("shutting down, send the signal again to force", "signal", sig.String())
		cancel()
		<-sigs
		os.Exit(130)
	}()

	return ctx
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}
