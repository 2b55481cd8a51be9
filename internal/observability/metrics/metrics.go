// Package metrics defines the Prometheus collectors shared by the
// matchmaking binaries, adapted from the teacher's cmd/metrics-server
// (same registration-at-init-time pattern, same promhttp exposition).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RankCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "litgo_match_rank_calls_total", Help: "Total rank() calls by outcome."},
		[]string{"outcome"},
	)
	RankDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "litgo_match_rank_duration_seconds", Help: "Latency of rank() calls.", Buckets: prometheus.DefBuckets},
	)
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "litgo_match_static_cache_requests_total", Help: "Static feature cache lookups by result."},
		[]string{"result"}, // hit, miss
	)
	OfferTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "litgo_match_offer_transitions_total", Help: "Offer state transitions."},
		[]string{"from", "to"},
	)
	OffersExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "litgo_match_offers_expired_total", Help: "Offers moved to expired by the expiration job."},
	)
	ServiceStartup = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "litgo_match_service_startup_timestamp", Help: "Unix time the service started."},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(RankCalls, RankDuration, CacheRequests, OfferTransitions, OffersExpired, ServiceStartup)
}

// MarkStartup records the current process's startup time under service.
func MarkStartup(service string) {
	ServiceStartup.WithLabelValues(service).Set(float64(time.Now().Unix()))
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }
