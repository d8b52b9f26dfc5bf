// internal/httpcontroller/server.go
package httpcontroller

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/acme/autocert"

	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/observability"
	"github.com/skybound/skybound/internal/observability/metrics"
)

// Server encapsulates Echo server and related configurations.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	Backend  *catalog.Backend
	Metrics  *observability.Metrics

	cookies sessions.Store
	cache   *catalog.ListCache
	events  listing.EventSink
	limiter *loginLimiter
	log     logger.Logger
}

// Options carries the collaborators of a Server. Only Backend is required.
type Options struct {
	Backend *catalog.Backend
	Metrics *observability.Metrics
	Events  listing.EventSink
	Cache   *catalog.ListCache
	Logger  logger.Logger
}

// New initializes the admin web server.
func New(settings *conf.Settings, opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.Newf("web server needs a backend").
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.WebServer.SessionSecret == "" {
		return nil, errors.Newf("webserver.sessionsecret is empty").
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	configureDefaultSettings(settings)

	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("web")
	}

	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
		Backend:  opts.Backend,
		Metrics:  opts.Metrics,
		cookies:  sessionCookieStore(settings),
		cache:    opts.Cache,
		events:   opts.Events,
		limiter:  newLoginLimiter(settings.Security.LoginRate, settings.Security.LoginBurst),
		log:      opts.Logger,
	}

	// Configure an IP extractor
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	if err := s.initializeServer(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start listens and serves until the server is shut down. It returns nil
// after a clean Shutdown.
func (s *Server) Start() error {
	var err error

	s.log.Info("starting web server",
		logger.String("port", s.Settings.WebServer.Port),
		logger.Bool("autotls", s.Settings.Security.AutoTLS))

	if s.Settings.Security.AutoTLS {
		configPaths, configErr := conf.GetDefaultConfigPaths()
		if configErr != nil {
			return errors.New(configErr).
				Component("httpcontroller").
				Category(errors.CategoryConfiguration).
				Context("operation", "autotls-cache-dir").
				Build()
		}

		s.Echo.AutoTLSManager.Prompt = autocert.AcceptTOS
		s.Echo.AutoTLSManager.Cache = autocert.DirCache(configPaths[0])
		s.Echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.Settings.Security.Host)

		err = s.Echo.StartAutoTLS(":" + s.Settings.WebServer.Port)
	} else {
		err = s.Echo.Start(":" + s.Settings.WebServer.Port)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Context("port", s.Settings.WebServer.Port).
			Build()
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	return s.Echo.Shutdown(ctx)
}

// RealIP returns the client address, preferring the first X-Forwarded-For entry.
func (s *Server) RealIP(c echo.Context) string {
	if xff := c.Request().Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return c.Request().RemoteAddr
	}
	return ip
}

// initializeServer configures and initializes the server.
func (s *Server) initializeServer() error {
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	if s.Settings.Debug {
		s.Echo.Debug = true
		s.Echo.Logger.SetLevel(log.DEBUG)
	} else {
		s.Echo.Logger.SetLevel(log.WARN)
	}

	if err := s.setupTemplateRenderer(); err != nil {
		return err
	}
	s.configureMiddleware()
	s.initRoutes()
	return nil
}

// listingOptions returns the controller options for birds and users,
// which are always fetched fresh.
func (s *Server) listingOptions() listing.Options {
	return listing.Options{Log: s.log, Events: s.events}
}

// referenceOptions adds the short lived list cache used for lookup tables.
func (s *Server) referenceOptions() listing.Options {
	opts := s.listingOptions()
	opts.Cache = s.cache
	return opts
}

func (s *Server) httpMetrics() *metrics.HTTPMetrics {
	if s.Metrics == nil {
		return nil
	}
	return s.Metrics.HTTP
}

// configureDefaultSettings sets default values for server settings.
func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8080"
	}
	if settings.WebServer.SessionMaxAge <= 0 {
		settings.WebServer.SessionMaxAge = 86400
	}
}
