package httpcontroller

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/skybound/skybound/internal/logger"
)

// CSRFContextKey is the key used to store CSRF token in the context
const CSRFContextKey = "skybound-csrf"

const requestIDHeader = "X-Request-ID"

// configureMiddleware sets up middleware for the server.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.RequestIDMiddleware())
	s.Echo.Use(s.LoggingMiddleware())
	s.Echo.Use(s.MetricsMiddleware())
	s.Echo.Use(s.SecureHeadersMiddleware())
	s.Echo.Use(s.CSRFMiddleware())
	s.Echo.Use(s.GzipMiddleware())
	s.Echo.Use(s.CacheControlMiddleware())
	s.Echo.Use(s.SessionMiddleware())
}

// RequestIDMiddleware assigns a short request id unless the client sent one.
func (s *Server) RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()[:8]
				c.Request().Header.Set(requestIDHeader, requestID)
			}
			c.Response().Header().Set(requestIDHeader, requestID)
			return next(c)
		}
	}
}

// requestLogger returns the server logger bound to the request's id and client.
func (s *Server) requestLogger(c echo.Context) logger.Logger {
	return s.log.With(
		logger.String("request_id", c.Request().Header.Get(requestIDHeader)),
		logger.String("client_ip", s.RealIP(c)),
	)
}

// LoggingMiddleware logs one line per request.
func (s *Server) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}

			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().URL.Path),
				logger.Int("status", c.Response().Status),
				logger.Int64("latency_ms", time.Since(start).Milliseconds()),
				logger.Int64("bytes_out", c.Response().Size),
			}
			reqLog := s.requestLogger(c)
			switch {
			case c.Response().Status >= http.StatusInternalServerError:
				reqLog.Error("request failed", append(fields, logger.Error(err))...)
			case strings.HasPrefix(c.Request().URL.Path, "/healthz"),
				strings.HasPrefix(c.Request().URL.Path, "/metrics"):
				reqLog.Debug("request", fields...)
			default:
				reqLog.Info("request", fields...)
			}
			return nil
		}
	}
}

// MetricsMiddleware records request counts and durations per route.
func (s *Server) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			s.httpMetrics().RecordHTTPRequest(c.Request().Method, path, status, time.Since(start).Seconds())
			return err
		}
	}
}

// SecureHeadersMiddleware adds the usual browser hardening headers.
func (s *Server) SecureHeadersMiddleware() echo.MiddlewareFunc {
	cfg := middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "same-origin",
	}
	if s.Settings.Security.AutoTLS {
		cfg.HSTSMaxAge = 31536000
	}
	return middleware.SecureWithConfig(cfg)
}

// CSRFMiddleware configures CSRF protection for the server
func (s *Server) CSRFMiddleware() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.Settings.Security.AutoTLS,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   1800, // 30 minutes token lifetime
		TokenLength:    32,
		ContextKey:     CSRFContextKey,
		Skipper: func(c echo.Context) bool {
			path := c.Path()
			return path == "/healthz" || path == "/metrics"
		},
		ErrorHandler: func(err error, c echo.Context) error {
			s.requestLogger(c).Warn("CSRF token validation failed",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().URL.Path),
				logger.Error(err))
			return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
		},
	})
}

// GzipMiddleware configures Gzip compression for the server
func (s *Server) GzipMiddleware() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	})
}

// CacheControlMiddleware keeps pages that depend on the session out of shared caches.
func (s *Server) CacheControlMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Cache-Control", "no-store")
			c.Response().Header().Set("Vary", "Cookie")
			return next(c)
		}
	}
}
