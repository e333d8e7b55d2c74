package scheduler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names
const (
	MetricJobsClaimedTotal    = "sync_jobs_claimed_total"
	MetricItemsProcessedTotal = "sync_items_processed_total"
	MetricItemDurationSeconds = "sync_item_duration_seconds"
	MetricTokenRefreshTotal   = "sync_token_refresh_total"
	MetricQueueDepth          = "sync_engine_queue_depth"
)

// Values of the result label
const (
	itemResultCompleted         = "completed"
	itemResultRetry             = "retry"
	itemResultFailed            = "failed"
	tokenRefreshResultRefreshed = "refreshed"
	tokenRefreshResultFailed    = "failed"
)

const metricResultLabel = "result"

// Metrics holds the engine's Prometheus collectors on a private registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	jobsClaimed    prometheus.Counter
	itemsProcessed *prometheus.CounterVec
	itemDuration   *prometheus.HistogramVec
	tokenRefresh   *prometheus.CounterVec
	queueDepth     prometheus.Gauge
}

// NewMetrics creates the engine collectors together with Go runtime and
// process collectors on a new registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		jobsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricJobsClaimedTotal,
			Help: "Total number of pending jobs claimed by this instance.",
		}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricItemsProcessedTotal,
			Help: "Total number of job item attempts by outcome.",
		}, []string{metricResultLabel}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricItemDurationSeconds,
			Help:    "Duration of a single job item attempt in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"job_type", "item_type"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTokenRefreshTotal,
			Help: "Total number of scheduled access token refreshes by outcome.",
		}, []string{metricResultLabel}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricQueueDepth,
			Help: "Number of jobs waiting in the engine queue.",
		}),
	}

	registry.MustRegister(
		m.jobsClaimed,
		m.itemsProcessed,
		m.itemDuration,
		m.tokenRefresh,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) jobsClaimedAdd(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.jobsClaimed.Add(float64(n))
}

func (m *Metrics) observeItem(jobType, itemType, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.itemsProcessed.WithLabelValues(result).Inc()
	m.itemDuration.WithLabelValues(jobType, itemType).Observe(elapsed.Seconds())
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveTokenRefresh counts refresh outcomes of one scheduled run
func (m *Metrics) ObserveTokenRefresh(refreshed, failed int) {
	if m == nil {
		return
	}
	m.tokenRefresh.WithLabelValues(tokenRefreshResultRefreshed).Add(float64(refreshed))
	m.tokenRefresh.WithLabelValues(tokenRefreshResultFailed).Add(float64(failed))
}
