// Package metrics collects and exposes Prometheus metrics for searches and saved-bill mutations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty"
	OutcomeFailure  = "failure"
	OutcomeStale    = "stale"
	OutcomeRejected = "rejected"
)

// Recorder is what the session and stores report into.
type Recorder interface {
	RecordSearch(kind, outcome string)
	RecordSearchLatency(d time.Duration)
	RecordBillsParsed(n int)
	RecordDroppedSegments(n int)
	RecordSavedMutation(op string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	searches        *prometheus.CounterVec
	searchLatency   prometheus.Histogram
	billsParsed     prometheus.Counter
	droppedSegments prometheus.Counter
	savedMutations  *prometheus.CounterVec
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billfinder_searches_total",
			Help: "Searches dispatched, by kind (first, more) and outcome.",
		}, []string{"kind", "outcome"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billfinder_search_latency_seconds",
			Help:    "Remote search latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		billsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billfinder_bills_parsed_total",
			Help: "Bill records produced by the response parsers.",
		}),
		droppedSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billfinder_dropped_segments_total",
			Help: "Free-text segments dropped for missing required fields.",
		}),
		savedMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billfinder_saved_mutations_total",
			Help: "Saved-bill store mutations, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.searches,
		c.searchLatency,
		c.billsParsed,
		c.droppedSegments,
		c.savedMutations,
	)
	return c
}

func (c *Collector) RecordSearch(kind, outcome string) {
	c.searches.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordSearchLatency(d time.Duration) {
	c.searchLatency.Observe(d.Seconds())
}

func (c *Collector) RecordBillsParsed(n int) {
	c.billsParsed.Add(float64(n))
}

func (c *Collector) RecordDroppedSegments(n int) {
	c.droppedSegments.Add(float64(n))
}

func (c *Collector) RecordSavedMutation(op string) {
	c.savedMutations.WithLabelValues(op).Inc()
}

// Handler serves the registry for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used by the terminal client and tests.
type Nop struct{}

func (Nop) RecordSearch(string, string)       {}
func (Nop) RecordSearchLatency(time.Duration) {}
func (Nop) RecordBillsParsed(int)             {}
func (Nop) RecordDroppedSegments(int)         {}
func (Nop) RecordSavedMutation(string)        {}
