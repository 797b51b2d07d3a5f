package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StreamEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_stream_events_total",
		Help: "Total chat stream events received",
	})
	MessagesBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_messages_blocked_total",
		Help: "Total messages dropped by the blocklist",
	})
	CandidatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_candidates_total",
		Help: "Total consolidated posting candidates",
	})
	GeocodeRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_geocode_rejected_total",
		Help: "Total candidates rejected for missing coordinates",
	})
	PostingsInsertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_postings_inserted_total",
		Help: "Total postings persisted",
	})
	PostingsArchivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_postings_archived_total",
		Help: "Total postings moved to the archive",
	})
	FeedRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freestuff_feed_requests_total",
		Help: "Total feed queries served",
	})
	FeedDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "freestuff_feed_duration_ms",
		Help:    "Feed query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
)

func init() {
	prometheus.MustRegister(
		StreamEventsTotal,
		MessagesBlockedTotal,
		CandidatesTotal,
		GeocodeRejectedTotal,
		PostingsInsertedTotal,
		PostingsArchivedTotal,
		FeedRequestsTotal,
		FeedDurationMs,
	)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
