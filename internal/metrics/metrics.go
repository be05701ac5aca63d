package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "cashflow_"

	ResultSuccess   = "success"
	ResultUpstream  = "upstream_error"
	ResultTransport = "transport_error"
	ResultError     = "error"
)

var (
	registerOnce sync.Once

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	insightsTotal  *prometheus.CounterVec
	remindersTotal *prometheus.CounterVec
)

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		providerRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "provider_requests_total",
				Help: "Total forecast provider calls by operation and result",
			},
			[]string{"op", "result"},
		)
		providerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "provider_latency_seconds",
				Help:    "Forecast provider call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)
		insightsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "insights_total",
				Help: "Total insight generation attempts by result",
			},
			[]string{"result"},
		)
		remindersTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reminders_total",
				Help: "Total reminders processed by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			providerRequests,
			providerLatency,
			httpRequests,
			httpLatency,
			insightsTotal,
			remindersTotal,
		)
	})
}

// ObserveProvider records one provider call.
func ObserveProvider(op, result string, duration time.Duration) {
	if providerRequests == nil {
		return
	}
	providerRequests.WithLabelValues(op, result).Inc()
	providerLatency.WithLabelValues(op, result).Observe(duration.Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(route string, code int, duration time.Duration) {
	if httpRequests == nil {
		return
	}
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// IncInsight records an insight attempt.
func IncInsight(result string) {
	if insightsTotal == nil {
		return
	}
	insightsTotal.WithLabelValues(result).Inc()
}

// IncReminder records a processed reminder.
func IncReminder(result string) {
	if remindersTotal == nil {
		return
	}
	remindersTotal.WithLabelValues(result).Inc()
}
