// Package metrics provides Prometheus collectors for the meeting gateway.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// backendRequestsTotal counts signed calls issued to the conferencing backend.
	// Labels:
	//   - action: create, getMeetingInfo
	//   - outcome: success, unreachable, rejected, backend_error
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbb_backend_requests_total",
			Help: "Total number of signed requests issued to the conferencing backend",
		},
		[]string{"action", "outcome"},
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bbb_backend_request_duration_seconds",
			Help:    "Latency of conferencing backend requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"action"},
	)

	// meetingRequestsTotal counts handled create/join requests.
	// Labels:
	//   - mode: legacy, new, existing
	//   - outcome: joined, deferred, invalid, window, failed
	meetingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_requests_total",
			Help: "Total number of meeting create/join requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// statusLookupsTotal counts status polls by how they were served.
	// Labels:
	//   - source: cache, backend, shared
	statusLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_status_lookups_total",
			Help: "Total number of meeting status lookups by source",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(backendRequestsTotal)
	prometheus.MustRegister(backendRequestDuration)
	prometheus.MustRegister(meetingRequestsTotal)
	prometheus.MustRegister(statusLookupsTotal)
}

// RecordBackendRequest records the outcome and latency of one backend call.
func RecordBackendRequest(action, outcome string, durationSeconds float64) {
	backendRequestsTotal.WithLabelValues(action, outcome).Inc()
	backendRequestDuration.WithLabelValues(action).Observe(durationSeconds)
}

// RecordMeetingRequest records a handled create/join request.
func RecordMeetingRequest(mode, outcome string) {
	meetingRequestsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordStatusLookup records where a status result came from.
func RecordStatusLookup(source string) {
	statusLookupsTotal.WithLabelValues(source).Inc()
}
