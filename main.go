package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AMEND09/ID-Scanner/cmd"
	"github.com/AMEND09/ID-Scanner/internal/buildinfo"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/telemetry"
)

// buildDate and version are set at build time with -ldflags.
var (
	buildDate string
	version   string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := &buildinfo.Context{Version: version, BuildDate: buildDate}
	settings := conf.DefaultSettings()

	rootCmd := cmd.RootCommand(settings, build)
	err := rootCmd.ExecuteContext(ctx)
	telemetry.Flush()
	if err != nil {
		return 1
	}
	return 0
}
