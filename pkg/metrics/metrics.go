// Package metrics provides Prometheus metrics for the storefront client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts orchestration API calls by operation and outcome.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "api_requests_total",
			Help:      "Total number of orchestration API requests",
		},
		[]string{"operation", "outcome"},
	)

	// StreamFramesTotal counts decoded log stream frames by kind.
	StreamFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stream_frames_total",
			Help:      "Total number of provisioning log frames received",
		},
		[]string{"kind"},
	)

	// SessionsTotal counts ended provisioning sessions by how they ended.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "sessions_total",
			Help:      "Total number of provisioning sessions by final state",
		},
		[]string{"result"},
	)

	// DirectoryStores tracks the number of stores in the local directory.
	DirectoryStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "directory_stores",
			Help:      "Number of stores currently held in the store directory",
		},
	)
)

// Outcome labels for APIRequestsTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// RecordRequest increments the request counter for an operation.
func RecordRequest(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	APIRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
