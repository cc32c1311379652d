package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_dispatch", Name: "matches_total",
		Help: "Total match/broadcast runs executed",
	})
	OffersSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_dispatch", Name: "offers_sent_total",
		Help: "Total order offers delivered to courier connections",
	})
	CandidatesExcludedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_dispatch", Name: "match_candidates_excluded_total",
			Help: "Candidates dropped during matching, by reason",
		},
		[]string{"reason"},
	)
	AcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_dispatch", Name: "accept_conflicts_total",
		Help: "Accept attempts that lost the assignment race",
	})
	DriversConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "order_dispatch", Name: "drivers_connected",
		Help: "Couriers currently holding a live connection",
	})
	BroadcastDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_dispatch", Name: "broadcast_dropped_total",
		Help: "Topic publishes that failed on a subscriber connection",
	})
	SchedulerPendingTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "order_dispatch", Name: "scheduler_pending_timers",
		Help: "Deferred emission timers currently outstanding",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "order_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "order_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
