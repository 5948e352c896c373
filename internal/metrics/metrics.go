package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/aybekd/meetgrid/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Credential lifecycle

	EmailTokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetgrid",
		Name:      "email_tokens_issued_total",
		Help:      "Single-use email tokens issued, by kind.",
	}, []string{"kind"})

	TokenVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetgrid",
		Name:      "email_token_verifications_total",
		Help:      "Email token verification attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetgrid",
		Name:      "logins_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"outcome"})

	RefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetgrid",
		Name:      "session_refreshes_total",
		Help:      "Access token refresh attempts, by outcome.",
	}, []string{"outcome"})

	// Housekeeping

	SweeperPurgedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetgrid",
		Name:      "sweeper_purged_rows_total",
		Help:      "Dead token rows removed by the sweeper, by table.",
	}, []string{"table"})

	SweeperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "meetgrid",
		Name:      "sweeper_cycle_duration_seconds",
		Help:      "Time taken for one sweeper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meetgrid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetgrid",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		EmailTokensIssuedTotal,
		TokenVerificationsTotal,
		LoginsTotal,
		RefreshesTotal,
		SweeperPurgedTotal,
		SweeperCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer exposes /metrics plus liveness and readiness probes on their own
// port, away from the public API surface.
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
