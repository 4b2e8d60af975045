// Package metrics exposes Prometheus collectors for the review engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReviewsCompleted counts review completions by verdict.
	ReviewsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afropedia_reviews_completed_total",
			Help: "Peer reviews completed, by verdict",
		},
		[]string{"verdict"},
	)

	// ConsensusDecisions counts decisions applied to revisions.
	ConsensusDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afropedia_consensus_decisions_total",
			Help: "Revision decisions applied, by outcome",
		},
		[]string{"outcome"},
	)

	// HeadAdvances counts head pointer moves by the path that caused them.
	HeadAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afropedia_head_advances_total",
			Help: "Document head pointer advances, by path",
		},
		[]string{"path"},
	)

	Conflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afropedia_conflicts_total",
			Help: "Requests rejected with a conflict, by code",
		},
		[]string{"code"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afropedia_events_published_total",
			Help: "Events handed to sinks, by sink and result",
		},
		[]string{"sink", "result"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "afropedia_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
