// Package metrics registers the process-wide prometheus collectors
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the default registry in the text exposition format
func Handler() http.Handler { return promhttp.Handler() }

var (
	SlicesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_slices_emitted_total",
			Help: "Date slices handed to the dispatcher",
		},
		[]string{"worker", "subsliced"},
	)

	KeySlicesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_key_slices_emitted_total",
			Help: "Key slices attached to oversized date slices",
		},
		[]string{"worker"},
	)

	RecordsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_records_planned_total",
			Help: "Sum of the counts of emitted slices",
		},
		[]string{"worker"},
	)

	OracleQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_oracle_queries_total",
			Help: "Count queries sent to the store",
		},
		[]string{"kind", "result"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rangeslicer_oracle_query_duration_seconds",
			Help:    "Count query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_retries_total",
			Help: "Slice attempts retried after a failed count query",
		},
		[]string{"worker"},
	)

	WindowAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_window_advances_total",
			Help: "Streaming windows entered",
		},
		[]string{"worker"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangeslicer_http_requests_total",
			Help: "Status server requests by route pattern and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rangeslicer_http_request_duration_seconds",
			Help:    "Status server latency by route pattern",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"route"},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rangeslicer_workers_active",
			Help: "Workers currently slicing",
		},
	)
)
