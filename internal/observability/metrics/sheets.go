package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AMEND09/ID-Scanner/internal/errors"
)

// SheetsMetrics tracks remote append calls.
type SheetsMetrics struct {
	Writes       *prometheus.CounterVec
	RowsWritten  *prometheus.CounterVec
	WriteLatency *prometheus.HistogramVec
	LastSuccess  prometheus.Gauge
}

// NewSheetsMetrics creates and registers the spreadsheet writer collectors.
func NewSheetsMetrics(registry prometheus.Registerer) (*SheetsMetrics, error) {
	m := &SheetsMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register sheets metrics: %w", err)
	}
	return m, nil
}

func (m *SheetsMetrics) initMetrics() {
	m.Writes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idscanner_sheet_writes_total",
		Help: "Append calls against the spreadsheet service",
	}, []string{"operation", "status", "category"})

	m.RowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idscanner_sheet_rows_written_total",
		Help: "Rows appended successfully",
	}, []string{"operation"})

	m.WriteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "idscanner_sheet_write_seconds",
		Help:    "Latency of append calls",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"operation"})

	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "idscanner_sheet_last_success_timestamp_seconds",
		Help: "Time of the last successful append",
	})
}

// ObserveWrite implements sheets.WriteObserver.
func (m *SheetsMetrics) ObserveWrite(operation string, rows int, err error, elapsed time.Duration) {
	m.WriteLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		m.Writes.WithLabelValues(operation, "error", categoryOf(err)).Inc()
		return
	}
	m.Writes.WithLabelValues(operation, "success", "").Inc()
	m.RowsWritten.WithLabelValues(operation).Add(float64(rows))
	m.LastSuccess.SetToCurrentTime()
}

func categoryOf(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.GetCategory() != "" {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}

// Collect implements the prometheus.Collector interface.
func (m *SheetsMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Writes.Collect(ch)
	m.RowsWritten.Collect(ch)
	m.WriteLatency.Collect(ch)
	ch <- m.LastSuccess
}

// Describe implements the prometheus.Collector interface.
func (m *SheetsMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Writes.Describe(ch)
	m.RowsWritten.Describe(ch)
	m.WriteLatency.Describe(ch)
	ch <- m.LastSuccess.Desc()
}
