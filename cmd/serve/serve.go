package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skybound/skybound/internal/buildinfo"
	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/events"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/httpcontroller"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/mqtt"
	"github.com/skybound/skybound/internal/observability"
)

const (
	shutdownTimeout      = 10 * time.Second
	eventBusDrainTimeout = 5 * time.Second
	brokerConnectTimeout = 15 * time.Second
)

// Command creates the command that runs the admin web server.
func Command(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin web server",
		Long:  "Serve the bird catalog administration site on top of the configured REST backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return Run(ctx, settings, info)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port of the web server")
	cmd.Flags().BoolVar(&settings.WebServer.Metrics, "metrics", viper.GetBool("webserver.metrics"), "Expose Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&settings.Events.Enabled, "events", viper.GetBool("events.enabled"), "Publish catalog changes to the MQTT broker")

	for flag, key := range map[string]string{
		"port":    "webserver.port",
		"metrics": "webserver.metrics",
		"events":  "events.enabled",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}

	return nil
}

// Run wires the backend client, metrics, list cache and optional change
// events into the web server and serves until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Info) error {
	log := logger.Global().Module("serve")

	m, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component("serve").
			Category(errors.CategoryGeneric).
			Context("operation", "init-metrics").
			Build()
	}

	userAgent := settings.Backend.UserAgent
	if userAgent != "" {
		userAgent = info.UserAgent(userAgent)
	}
	client := httpclient.New(httpclient.ConfigFromSettings(settings, userAgent))
	defer client.Close()
	client.SetAfterResponseHook(m.ObserveBackendResponse)

	backend := catalog.New(client, logger.Global().Module("catalog"))

	cache := catalog.NewListCache(settings.Backend.CacheTTL)
	cache.OnLookup(m.Backend.RecordCacheLookup)

	var sink listing.EventSink
	if settings.Events.Enabled {
		bus, stopEvents, err := startEvents(ctx, settings, m, log)
		if err != nil {
			log.Warn("catalog change events disabled", logger.Error(err))
		} else {
			sink = bus
			defer stopEvents()
		}
	}

	server, err := httpcontroller.New(settings, httpcontroller.Options{
		Backend: backend,
		Metrics: m,
		Events:  sink,
		Cache:   cache,
		Logger:  logger.Global().Module("web"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown failed", logger.Error(err))
	}
	return <-serveErr
}

// startEvents connects to the broker and registers the MQTT publisher on
// a new event bus. The returned func drains the bus and disconnects.
func startEvents(ctx context.Context, settings *conf.Settings, m *observability.Metrics, log logger.Logger) (*events.EventBus, func(), error) {
	cfg := mqtt.ConfigFromSettings(settings)
	client, err := mqtt.NewClient(cfg, m.Changes, logger.Global().Module("mqtt"))
	if err != nil {
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, brokerConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, nil, err
	}

	bus := events.New(events.DefaultConfig(), logger.Global().Module("events"))
	if err := bus.RegisterConsumer(mqtt.NewChangeConsumer(client, cfg, m.Changes)); err != nil {
		client.Disconnect()
		return nil, nil, err
	}

	log.Info("publishing catalog changes",
		logger.String("broker", cfg.Broker),
		logger.String("topic", cfg.Topic))

	return bus, func() {
		if err := bus.Shutdown(eventBusDrainTimeout); err != nil {
			log.Warn("event bus did not drain", logger.Error(err))
		}
		client.Disconnect()
	}, nil
}
