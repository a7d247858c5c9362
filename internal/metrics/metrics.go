// Registers:
//
//	#brokerboard_stats_fetch_total{result}
//	#brokerboard_token_fetch_total{result}
//	#brokerboard_stats_fetch_duration_seconds
//	#brokerboard_registry_size
//	#brokerboard_cached_brokers
//	#brokerboard_snapshots_total{result}
//	#brokerboard_http_requests_total{route,method,status}
//	#go_* and process_* system metrics
//
// Exposed through Handler, mounted by the HTTP server on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
)

var (
	once               sync.Once
	registry           *prometheus.Registry
	statsFetch         *prometheus.CounterVec
	tokenFetch         *prometheus.CounterVec
	statsFetchDuration prometheus.Histogram
	registrySize       prometheus.Gauge
	cachedBrokers      prometheus.Gauge
	snapshots          *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		statsFetch = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokerboard_stats_fetch_total",
				Help: "Broker stats fetch attempts by result",
			},
			[]string{"result"},
		)
		tokenFetch = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokerboard_token_fetch_total",
				Help: "Token metadata fetch attempts by result",
			},
			[]string{"result"},
		)
		statsFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brokerboard_stats_fetch_duration_seconds",
			Help:    "Latency of broker stats fetches",
			Buckets: prometheus.DefBuckets,
		})
		registrySize = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brokerboard_registry_size",
			Help: "Number of brokers in the polling registry",
		})
		cachedBrokers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brokerboard_cached_brokers",
			Help: "Number of brokers with a cached stats snapshot",
		})
		snapshots = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokerboard_snapshots_total",
				Help: "Snapshot events by publish result",
			},
			[]string{"result"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokerboard_http_requests_total",
				Help: "HTTP requests served by route and status",
			},
			[]string{"route", "method", "status"},
		)

		registry.MustRegister(
			statsFetch,
			tokenFetch,
			statsFetchDuration,
			registrySize,
			cachedBrokers,
			snapshots,
			httpRequests,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus text format. Init is called
// if it has not been already.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func resultLabel(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultError
}

// ObserveStatsFetch records one stats fetch and its latency.
func ObserveStatsFetch(ok bool, d time.Duration) {
	if statsFetch != nil {
		statsFetch.WithLabelValues(resultLabel(ok)).Inc()
		statsFetchDuration.Observe(d.Seconds())
	}
}

func ObserveTokenFetch(ok bool) {
	if tokenFetch != nil {
		tokenFetch.WithLabelValues(resultLabel(ok)).Inc()
	}
}

// SetCacheGauges updates the registry size and cached broker gauges.
func SetCacheGauges(total, cached int) {
	if registrySize != nil {
		registrySize.Set(float64(total))
		cachedBrokers.Set(float64(cached))
	}
}

// ObserveSnapshot counts a snapshot event by result (ResultOK, ResultError or ResultDropped).
func ObserveSnapshot(result string) {
	if snapshots != nil {
		snapshots.WithLabelValues(result).Inc()
	}
}

func ObserveHTTPRequest(route, method string, status int) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	}
}
