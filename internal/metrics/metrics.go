// Package metrics holds the Prometheus collectors for feed ingestion and
// normalization.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed fetch metrics
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityevents_feed_fetches_total",
			Help: "Feed fetch attempts by feed and result (success, failure, rejected)",
		},
		[]string{"feed", "result"},
	)

	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityevents_feed_fetch_duration_seconds",
			Help:    "Duration of feed HTTP fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	FeedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityevents_feed_rows_total",
			Help: "Rows recovered from feed bodies",
		},
		[]string{"feed"},
	)

	FeedParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityevents_feed_parse_errors_total",
			Help: "Feed bodies that contained malformed records",
		},
		[]string{"feed"},
	)

	// Circuit breaker: 0 = closed, 1 = half-open, 2 = open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cityevents_feed_circuit_breaker_state",
			Help: "Feed circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"feed"},
	)

	// Normalization metrics
	RowsQuarantined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityevents_rows_quarantined_total",
			Help: "Event rows rejected during normalization by reason code",
		},
		[]string{"reason"},
	)

	VenueMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityevents_venue_matches_total",
			Help: "Venue resolutions by matching stage",
		},
		[]string{"stage"},
	)

	DuplicatesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cityevents_duplicates_merged_total",
			Help: "Event rows folded into another row by deduplication",
		},
	)

	EventsCapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cityevents_events_capped_total",
			Help: "Events dropped by the per-venue cap",
		},
	)

	EventsEmitted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cityevents_events_emitted",
			Help: "Events returned by the last pipeline run",
		},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cityevents_pipeline_duration_seconds",
			Help:    "Duration of full pipeline runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
