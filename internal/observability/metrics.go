// Package observability wires the Prometheus collectors of the ID scanner into one registry.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AMEND09/ID-Scanner/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Scanner  *metrics.ScannerMetrics
	Sheets   *metrics.SheetsMetrics
}

// NewMetrics creates a registry with process, Go runtime and application collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scannerMetrics, err := metrics.NewScannerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner metrics: %w", err)
	}

	sheetsMetrics, err := metrics.NewSheetsMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Scanner:  scannerMetrics,
		Sheets:   sheetsMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
