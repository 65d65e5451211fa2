package metrics

/*
subenum — passive subdomain enumeration in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     atomic.Bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// Source metrics
	SourceRequestDuration *prometheus.HistogramVec
	SourceRequestsTotal   *prometheus.CounterVec
	SourceErrorsTotal     *prometheus.CounterVec
	SourceHostnames       *prometheus.CounterVec
	RateLimitDelay        *prometheus.HistogramVec

	// Run metrics
	RunDuration     prometheus.Histogram
	UniqueHostnames prometheus.Gauge

	// Disk I/O metrics
	DiskWriteDuration *prometheus.HistogramVec
	DiskWriteBytes    *prometheus.CounterVec
	DiskErrors        *prometheus.CounterVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled.Store(true)
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// Registry exposes the private registry, e.g. for gathering in tests.
func Registry() *prometheus.Registry {
	return registry
}

// newMetrics creates and registers all metrics
func newMetrics() *Metrics {
	buckets := []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60}

	return &Metrics{
		SourceRequestDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subenum_source_request_duration_seconds",
				Help:    "Time spent fetching from a passive source",
				Buckets: buckets,
			},
			[]string{"source", "status"},
		),
		SourceRequestsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subenum_source_requests_total",
				Help: "Total number of source requests by outcome",
			},
			[]string{"source", "status"},
		),
		SourceErrorsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subenum_source_errors_total",
				Help: "Total number of source failures by error type",
			},
			[]string{"source", "error_type"},
		),
		SourceHostnames: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subenum_source_hostnames_total",
				Help: "Hostnames contributed by each source",
			},
			[]string{"source"},
		),
		RateLimitDelay: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subenum_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the outbound rate limiter",
				Buckets: buckets,
			},
			[]string{"source"},
		),
		RunDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "subenum_run_duration_seconds",
				Help:    "Wall time of a complete enumeration run",
				Buckets: buckets,
			},
		),
		UniqueHostnames: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "subenum_unique_hostnames",
				Help: "Unique hostnames found by the last run",
			},
		),
		DiskWriteDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subenum_disk_write_duration_seconds",
				Help:    "Time spent writing output files",
				Buckets: buckets,
			},
			[]string{"operation"},
		),
		DiskWriteBytes: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subenum_disk_write_bytes_total",
				Help: "Total number of bytes written to output files",
			},
			[]string{"operation"},
		),
		DiskErrors: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subenum_disk_errors_total",
				Help: "Total number of output write failures",
			},
			[]string{"operation"},
		),
	}
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics
func StartMetricsServer(addr string) error {
	if !IsMetricsEnabled() || addr == "" {
		return nil
	}

	// Only start once
	metricsInitialized.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Printf("Starting metrics server on %s", addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	})

	return nil
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer != nil {
		log.Println("Shutting down metrics server...")
		return metricsServer.Shutdown(ctx)
	}
	return nil
}

// WriteTextfile writes the current metrics in the Prometheus text format to
// path, for pickup by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if !IsMetricsEnabled() || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, registry)
}

// MeasureDuration is a helper to measure the duration of a function
func MeasureDuration(histogram *prometheus.HistogramVec, labels prometheus.Labels) func() {
	if !IsMetricsEnabled() {
		return func() {}
	}

	start := time.Now()
	return func() {
		histogram.With(labels).Observe(time.Since(start).Seconds())
	}
}

// ObserveSourceRequest records one completed source request.
func (m *Metrics) ObserveSourceRequest(source, status string, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}
	m.SourceRequestDuration.WithLabelValues(source, status).Observe(d.Seconds())
	m.SourceRequestsTotal.WithLabelValues(source, status).Inc()
}

// RecordSourceError counts a source failure by type.
func (m *Metrics) RecordSourceError(source, errorType string) {
	if !IsMetricsEnabled() {
		return
	}
	m.SourceErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// AddSourceHostnames adds n contributed hostnames for source.
func (m *Metrics) AddSourceHostnames(source string, n int) {
	if !IsMetricsEnabled() {
		return
	}
	m.SourceHostnames.WithLabelValues(source).Add(float64(n))
}

// ObserveRateLimitDelay records time spent waiting on the rate limiter.
func (m *Metrics) ObserveRateLimitDelay(source string, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}
	m.RateLimitDelay.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(unique int, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	m.UniqueHostnames.Set(float64(unique))
}

// RecordDiskWrite records a finished output write.
func (m *Metrics) RecordDiskWrite(operation string, bytes int) {
	if !IsMetricsEnabled() {
		return
	}
	m.DiskWriteBytes.WithLabelValues(operation).Add(float64(bytes))
}

// RecordDiskError counts a failed output write.
func (m *Metrics) RecordDiskError(operation string) {
	if !IsMetricsEnabled() {
		return
	}
	m.DiskErrors.WithLabelValues(operation).Inc()
}
