// Package metrics exposes Prometheus collectors for the quotes service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scrape outcome labels.
const (
	ScrapeOK          = "ok"
	ScrapeFetchError  = "fetch_error"
	ScrapeParseError  = "parse_error"
	ScrapeMissingNode = "selector_miss"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	quoteScrapesTotal          *prometheus.CounterVec
	quoteScrapeDuration        *prometheus.HistogramVec
	quoteLastValue             *prometheus.GaugeVec
	recordsInsertedTotal       *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		quoteScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_scrapes_total",
				Help: "Total number of quote scrapes, labeled by instrument and outcome.",
			},
			[]string{"instrument", "status"},
		)

		quoteScrapeDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_scrape_duration_seconds",
				Help:    "Histogram of quote page fetch latencies, labeled by instrument.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"instrument"},
		)

		quoteLastValue = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quote_last_value",
				Help: "Last successfully scraped value, labeled by instrument.",
			},
			[]string{"instrument"},
		)

		recordsInsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_inserted_total",
				Help: "Total number of rows inserted, labeled by table.",
			},
			[]string{"table"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_rate_limit_delay_seconds",
				Help:    "Time outbound fetches waited on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"host"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScrape records the outcome of one quote scrape. The value gauge is
// only moved on success.
func ObserveScrape(instrument, status string, value float64, duration time.Duration) {
	Init()
	quoteScrapesTotal.WithLabelValues(instrument, status).Inc()
	if duration > 0 {
		quoteScrapeDuration.WithLabelValues(instrument).Observe(duration.Seconds())
	}
	if status == ScrapeOK {
		quoteLastValue.WithLabelValues(instrument).Set(value)
	}
}

// ObserveInsert increments the inserted-rows counter for table.
func ObserveInsert(table string) {
	Init()
	recordsInsertedTotal.WithLabelValues(table).Inc()
}

// ObserveRateLimitDelay records how long a fetch to host waited for a token.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}
