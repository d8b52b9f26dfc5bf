package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skybound/skybound/cmd"
	"github.com/skybound/skybound/internal/buildinfo"
	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/logger"
)

// buildDate and version are set at build time with
// -ldflags "-X main.buildDate=... -X main.version=..."
var (
	buildDate string
	version   string
)

const telemetryFlushTimeout = 2 * time.Second

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	info := buildinfo.New(version, buildDate)

	// Load the configuration
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	centralLogger, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	logger.SetGlobal(centralLogger)
	defer func() {
		_ = centralLogger.Close()
	}()

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, info.Version(), settings.Sentry.Environment); err != nil {
			centralLogger.Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
		defer errors.FlushTelemetry(telemetryFlushTimeout)
	}

	rootCmd := cmd.RootCommand(settings, info)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}
