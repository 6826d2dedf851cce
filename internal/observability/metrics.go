package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	httpRequestsTotal           *prometheus.CounterVec
	httpLatencySeconds          *prometheus.HistogramVec
	httpErrorsTotal             *prometheus.CounterVec
	acceptancesTotal            *prometheus.CounterVec
	refundsTotal                *prometheus.CounterVec
	notificationsPublishedTotal *prometheus.CounterVec
	notificationsDroppedTotal   prometheus.Counter
	websocketClientsActive      prometheus.Gauge
	cacheLookupsTotal           *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorlink_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutorlink_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorlink_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		acceptancesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorlink_acceptances_total",
			Help: "Payment-confirmed acceptance attempts by outcome.",
		}, []string{"outcome"})

		refundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorlink_refunds_total",
			Help: "Refund reversals by outcome.",
		}, []string{"outcome"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorlink_notifications_published_total",
			Help: "Notifications delivered by type.",
		}, []string{"type"})

		notificationsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tutorlink_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full.",
		})

		websocketClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tutorlink_websocket_clients_active",
			Help: "Connected notification websocket clients.",
		})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorlink_cache_lookups_total",
			Help: "Redis cache lookups by cache and result.",
		}, []string{"cache", "result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			acceptancesTotal,
			refundsTotal,
			notificationsPublishedTotal,
			notificationsDroppedTotal,
			websocketClientsActive,
			cacheLookupsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Acceptances counts acceptance attempts labelled by outcome.
func Acceptances() *prometheus.CounterVec {
	RegisterMetrics()
	return acceptancesTotal
}

// Refunds counts refund reversals labelled by outcome.
func Refunds() *prometheus.CounterVec {
	RegisterMetrics()
	return refundsTotal
}

// NotificationsPublishedTotal counts delivered notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// NotificationsDropped counts notifications lost to a full queue.
func NotificationsDropped() prometheus.Counter {
	RegisterMetrics()
	return notificationsDroppedTotal
}

// WebsocketClientsActive tracks open notification sockets.
func WebsocketClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return websocketClientsActive
}

// CacheLookups counts cache hits and misses.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}
