// Package metrics Prometheus 指标
//
// HTTP 请求、TMDb 调用、数据导入三类指标，统一通过 /metrics 暴露。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_api_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movie_api_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// TMDb
	TMDBRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_tmdb_requests_total",
			Help: "Total number of TMDb API calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // ok, no_match, error, cached, breaker_open
	)

	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_tmdb_request_duration_seconds",
			Help:    "Duration of TMDb API calls in seconds, including pacing and retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	TMDBRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movie_tmdb_retries_total",
			Help: "Total number of retried TMDb API calls",
		},
	)

	// Seeder
	SeedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_seed_records_total",
			Help: "Total number of dataset records processed by outcome",
		},
		[]string{"outcome"}, // enriched, fallback, failed
	)

	SeedRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "movie_seed_run_duration_seconds",
			Help:    "Duration of complete seed runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

// RecordAPIRequest 记录一次 HTTP 请求
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	APIRequestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, route, code).Inc()
}

// TrackActiveRequest 进入请求时 inc=true，结束时 inc=false
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTMDBCall 记录一次 TMDb 调用
func RecordTMDBCall(endpoint, outcome string, duration time.Duration) {
	TMDBRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	if outcome != "cached" {
		TMDBRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}

func RecordTMDBRetry() {
	TMDBRetries.Inc()
}

// RecordSeedRecord 记录单条导入结果
func RecordSeedRecord(outcome string) {
	SeedRecordsTotal.WithLabelValues(outcome).Inc()
}

func RecordSeedRun(duration time.Duration) {
	SeedRunDuration.Observe(duration.Seconds())
}
