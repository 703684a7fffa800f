package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/health"
)

var (
	// Publish protocol

	PublishesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "publisher",
		Name:      "publishes_total",
		Help:      "Total two-phase publish attempts, by outcome.",
	}, []string{"outcome"})

	PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "publisher",
		Name:      "publish_duration_seconds",
		Help:      "End-to-end duration of successful publishes (create through commit).",
		Buckets:   []float64{1, 2.5, 5, 10, 15, 30, 60, 120},
	})

	// Poller

	PollerCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "publisher",
		Name:      "poller_cycle_duration_seconds",
		Help:      "Time taken by one due-post poller cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	PollerDuePosts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "publisher",
		Name:      "poller_due_posts",
		Help:      "Number of due posts found in the last poller cycle.",
	})

	PostsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "publisher",
		Name:      "posts_processed_total",
		Help:      "Scheduled posts driven to a terminal state, by outcome.",
	}, []string{"outcome"})

	// Credential lifecycle

	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "publisher",
		Name:      "token_refreshes_total",
		Help:      "Token refresh exchanges, by result.",
	}, []string{"result"})

	TokenExpirySeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "publisher",
		Name:      "token_expiry_timestamp_seconds",
		Help:      "Unix expiry of the live access token. 0 if non-expiring.",
	})

	// HTTP

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "publisher",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "publisher",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		PublishesTotal,
		PublishDuration,
		PollerCycleDuration,
		PollerDuePosts,
		PostsProcessedTotal,
		TokenRefreshesTotal,
		TokenExpirySeconds,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness/readiness probes on a
// separate port from the API.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
