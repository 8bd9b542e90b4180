package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "code_clash_submissions_accepted_total",
		Help: "Attempts that improved or created a best submission.",
	})
	SubmissionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "code_clash_submissions_rejected_total",
		Help: "Attempts dropped by the monotonic-improvement rule.",
	})
	SubmissionsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "code_clash_submissions_rate_limited_total",
		Help: "Attempts rejected by the per-user cooldown.",
	})
	LeaderboardRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "code_clash_leaderboard_rebuilds_total",
		Help: "Full contest leaderboard recomputations.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "code_clash_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "code_clash_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Middleware records request counts and latency for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		httpRequests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
