// Package metrics provides Prometheus collectors for the scanner, the decoders and the
// spreadsheet writer.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AMEND09/ID-Scanner/internal/decoder"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

// ScannerMetrics counts detections per source, payload kind and pipeline outcome.
type ScannerMetrics struct {
	Detections    *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	Decodes       *prometheus.CounterVec
	DecodeLatency prometheus.Histogram
}

// NewScannerMetrics creates and registers the scanner collectors.
func NewScannerMetrics(registry prometheus.Registerer) (*ScannerMetrics, error) {
	m := &ScannerMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register scanner metrics: %w", err)
	}
	return m, nil
}

func (m *ScannerMetrics) initMetrics() {
	m.Detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idscanner_detections_total",
		Help: "Detections handled by the pipeline",
	}, []string{"source", "kind", "outcome"})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "idscanner_queue_depth",
		Help: "Detections waiting in the pipeline queue",
	})

	m.Decodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "idscanner_frame_decodes_total",
		Help: "Camera frames decoded, by result",
	}, []string{"result"})

	m.DecodeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "idscanner_frame_decode_seconds",
		Help:    "Time spent decoding one camera frame",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
}

// ObserveDetection implements scanner.Observer.
func (m *ScannerMetrics) ObserveDetection(source decoder.Source, kind scan.Kind, outcome string) {
	m.Detections.WithLabelValues(string(source), string(kind), outcome).Inc()
}

// ObserveQueueDepth implements scanner.Observer.
func (m *ScannerMetrics) ObserveQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// ObserveDecode implements decoder.DecodeObserver.
func (m *ScannerMetrics) ObserveDecode(found bool, err error, elapsed time.Duration) {
	result := "empty"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "found"
	}
	m.Decodes.WithLabelValues(result).Inc()
	m.DecodeLatency.Observe(elapsed.Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *ScannerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Detections.Collect(ch)
	ch <- m.QueueDepth
	m.Decodes.Collect(ch)
	ch <- m.DecodeLatency
}

// Describe implements the prometheus.Collector interface.
func (m *ScannerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Detections.Describe(ch)
	ch <- m.QueueDepth.Desc()
	m.Decodes.Describe(ch)
	ch <- m.DecodeLatency.Desc()
}
