// Package metrics exposes the Prometheus collectors of the recon pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry          = prometheus.NewRegistry()
	defaultRegisterer = promauto.With(registry)

	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics contains all the Prometheus metrics for the application.
type Metrics struct {
	// Certificate-log discovery
	DiscoveryRequests *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	DiscoveredHosts   prometheus.Histogram

	// Liveness probes
	ProbesTotal    *prometheus.CounterVec
	ProbeDuration  *prometheus.HistogramVec
	ProbesInFlight prometheus.Gauge
	PoolConns      prometheus.Gauge

	// Scans and jobs
	ScansTotal *prometheus.CounterVec
	JobsTotal  *prometheus.CounterVec
	JobsQueued prometheus.Gauge
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler {
	GetMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func newMetrics() *Metrics {
	buckets := []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		DiscoveryRequests: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_discovery_requests_total",
				Help: "Certificate-log queries by outcome",
			},
			[]string{"status"},
		),
		DiscoveryDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recon_discovery_duration_seconds",
				Help:    "Time spent querying the certificate log",
				Buckets: buckets,
			},
		),
		DiscoveredHosts: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recon_discovered_hosts",
				Help:    "Hostnames returned per discovery",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		ProbesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_probes_total",
				Help: "Liveness probes by protocol that answered (none when unreachable)",
			},
			[]string{"protocol"},
		),
		ProbeDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recon_probe_attempt_duration_seconds",
				Help:    "Duration of a single scheme attempt",
				Buckets: buckets,
			},
			[]string{"scheme", "outcome"},
		),
		ProbesInFlight: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "recon_probes_in_flight",
				Help: "Probes currently executing across all scans",
			},
		),
		PoolConns: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "recon_pool_open_connections",
				Help: "Open connections held by the shared probe pool",
			},
		),
		ScansTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_scans_total",
				Help: "Scans and listings by kind",
			},
			[]string{"kind"},
		),
		JobsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_jobs_total",
				Help: "Finished asynchronous scan jobs by status",
			},
			[]string{"status"},
		),
		JobsQueued: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "recon_jobs_queued",
				Help: "Jobs waiting for a free slot",
			},
		),
	}
}
