package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniapp", Name: "api_requests_total", Help: "Backend API requests by operation and result kind",
	}, []string{"op", "kind"})
	APIDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "miniapp", Name: "api_request_seconds", Help: "Backend API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	ScreenTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniapp", Name: "screen_transitions_total", Help: "Session controller screen transitions",
	}, []string{"from", "to"})
	MarkingSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniapp", Name: "marking_sessions_total", Help: "Mass marking sessions by outcome",
	}, []string{"outcome"})
	CalendarExtensions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "miniapp", Name: "calendar_extensions_total", Help: "Lazy calendar range extensions",
	})
)

func init() {
	prometheus.MustRegister(APIRequests, APIDuration, ScreenTransitions, MarkingSessions, CalendarExtensions)
}

func Handler() http.Handler { return promhttp.Handler() }

// ObserveAPI — одна точка учёта исходящего запроса.
func ObserveAPI(op, kind string, d time.Duration) {
	APIRequests.WithLabelValues(op, kind).Inc()
	APIDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveTransition — переход экрана в контроллере.
func ObserveTransition(from, to string) {
	ScreenTransitions.WithLabelValues(from, to).Inc()
}
