package main

import (
	"chuniscrape/cmd/chuni-cli/commands"
	"chuniscrape/lib/telemetry"
	"chuniscrape/lib/util/serviceutil"
	"context"
	"time"
)

func main() {
	ctx := serviceutil.SignalContext()
	err := telemetry.SetupFromEnv(ctx, "chuni-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	commands.ExecuteContext(ctx)
}
