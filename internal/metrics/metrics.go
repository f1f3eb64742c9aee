// Package metrics exposes Prometheus counters for the link market.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkmarket"

var (
	// PicksSubmitted counts stored pick rows across all slates.
	PicksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "picks_submitted_total",
		Help:      "Total number of pick rows written by slate submissions",
	})

	// ClicksRecorded counts redirect clicks by outcome: unique,
	// duplicate or self_click.
	ClicksRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clicks_recorded_total",
		Help:      "Total redirect clicks by outcome",
	}, []string{"outcome"})

	// CyclesSettled counts successful settlements.
	CyclesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_settled_total",
		Help:      "Total number of cycles settled",
	})

	// ChipsCredited totals chips moved through the ledger by event
	// type.
	ChipsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chips_credited_total",
		Help:      "Total chips credited by ledger event type",
	}, []string{"event"})

	// JobRuns counts background job executions by job name and
	// outcome: ok, skipped or error.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Total background job executions by outcome",
	}, []string{"job", "outcome"})

	// FeedFetches counts outbound feed and page fetches by outcome:
	// ok, error or open_circuit.
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fetches_total",
		Help:      "Total outbound feed fetches by outcome",
	}, []string{"outcome"})
)

// Handler serves the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
