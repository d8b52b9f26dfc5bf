// Package observability wires the Prometheus collectors of SkyBound into
// one registry and exposes it for scraping.
// Sentry error telemetry lives in the errors package.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skybound/skybound/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	HTTP     *metrics.HTTPMetrics
	Backend  *metrics.BackendMetrics
	Changes  *metrics.ChangeMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry,
// initializing all metric collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	backendMetrics, err := metrics.NewBackendMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend metrics: %w", err)
	}

	changeMetrics, err := metrics.NewChangeMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create change metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		HTTP:     httpMetrics,
		Backend:  backendMetrics,
		Changes:  changeMetrics,
	}, nil
}

// Registry returns the registry every collector is registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ObserveBackendResponse has the shape of an httpclient after-response
// hook and records every backend round trip.
func (m *Metrics) ObserveBackendResponse(req *http.Request, resp *http.Response, _ error, elapsed time.Duration) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	m.Backend.RecordRequest(req.Method, status, elapsed.Seconds())
}

// promLogger routes promhttp errors into the module logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error(fmt.Sprint(v...))
}
