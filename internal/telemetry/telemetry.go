// Package telemetry exposes Prometheus metrics for the catalog pipeline:
// cycle counts, per-probe outcomes, and catalog size.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector manages all catalog metrics.
type Collector struct {
	cyclesTotal    prometheus.Counter
	cyclesFailed   prometheus.Counter
	probesTotal    prometheus.Counter
	probesValid    prometheus.Counter
	probesInvalid  prometheus.Counter
	sourceFetchErr *prometheus.CounterVec
	anonymityCount *prometheus.CounterVec

	cycleDuration prometheus.Histogram
	probeDuration prometheus.Histogram

	catalogSize      prometheus.Gauge
	activeValidators prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
	mutex    sync.RWMutex
}

// NewCollector creates a new metrics collector with a dedicated registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.initMetrics()
	c.registerMetrics()

	return c
}

func (c *Collector) initMetrics() {
	c.cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_validation_cycles_total",
		Help: "Total number of validation cycles run",
	})

	c.cyclesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_validation_cycles_failed_total",
		Help: "Total number of validation cycles that errored before producing a catalog",
	})

	c.probesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_proxy_probes_total",
		Help: "Total number of individual proxy probes performed",
	})

	c.probesValid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_proxy_probes_valid_total",
		Help: "Total number of probes that found a working proxy",
	})

	c.probesInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_proxy_probes_invalid_total",
		Help: "Total number of probes that found a non-working proxy",
	})

	c.sourceFetchErr = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_source_fetch_errors_total",
			Help: "Total number of source adapter fetch failures",
		},
		[]string{"source"},
	)

	c.anonymityCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_proxy_anonymity_total",
			Help: "Total number of valid proxies by anonymity classification",
		},
		[]string{"anonymity"},
	)

	c.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_validation_cycle_duration_seconds",
		Help:    "Duration of a full validation cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})

	c.probeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_proxy_probe_duration_seconds",
		Help:    "Duration of a single proxy probe in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	})

	c.catalogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_size",
		Help: "Number of proxy records, valid and invalid, currently in the catalog",
	})

	c.activeValidators = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_active_validator_workers",
		Help: "Number of validator worker goroutines currently running",
	})
}

func (c *Collector) registerMetrics() {
	c.registry.MustRegister(
		c.cyclesTotal,
		c.cyclesFailed,
		c.probesTotal,
		c.probesValid,
		c.probesInvalid,
		c.sourceFetchErr,
		c.anonymityCount,
		c.cycleDuration,
		c.probeDuration,
		c.catalogSize,
		c.activeValidators,
	)
}

// StartServer starts the metrics HTTP server.
func (c *Collector) StartServer(addr string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		server := c.server
		if server != nil {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				// caller's logger surfaces boot failures via health checks
			}
		}
	}()

	return nil
}

// StopServer stops the metrics HTTP server.
func (c *Collector) StopServer() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.server.Shutdown(ctx)
	c.server = nil
	return err
}

// RecordCycleStart should be called once per validation cycle.
func (c *Collector) RecordCycleStart() {
	c.cyclesTotal.Inc()
}

// RecordCycleFailed records a cycle that errored before producing results.
func (c *Collector) RecordCycleFailed() {
	c.cyclesFailed.Inc()
}

// RecordCycleDuration records the wall-clock time of a completed cycle.
func (c *Collector) RecordCycleDuration(d time.Duration) {
	c.cycleDuration.Observe(d.Seconds())
}

// RecordProbe records the outcome of a single proxy probe.
func (c *Collector) RecordProbe(valid bool, anonymity string, d time.Duration) {
	c.probesTotal.Inc()
	c.probeDuration.Observe(d.Seconds())
	if valid {
		c.probesValid.Inc()
		c.anonymityCount.WithLabelValues(anonymity).Inc()
	} else {
		c.probesInvalid.Inc()
	}
}

// RecordSourceFetchError records a source adapter failure by source name.
func (c *Collector) RecordSourceFetchError(source string) {
	c.sourceFetchErr.WithLabelValues(source).Inc()
}

// SetCatalogSize updates the catalog size gauge.
func (c *Collector) SetCatalogSize(size int) {
	c.catalogSize.Set(float64(size))
}

// SetActiveValidators updates the active validator worker gauge.
func (c *Collector) SetActiveValidators(count int) {
	c.activeValidators.Set(float64(count))
}

// GetRegistry returns the Prometheus registry for external use.
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// GetMetricsHandler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
