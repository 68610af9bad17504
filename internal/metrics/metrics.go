// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts HTTP requests by route pattern, method and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// JobDispatchTotal counts dispatch attempts by job type and outcome.
	JobDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_dispatch_total",
			Help: "Total number of job dispatch attempts.",
		},
		[]string{"job_type", "outcome"},
	)

	// HeartbeatTotal counts heartbeat probes by result (reachable/unreachable).
	HeartbeatTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartbeat_probes_total",
			Help: "Total number of heartbeat probes sent to the API host.",
		},
		[]string{"result"},
	)

	// HeartbeatLastStatus holds the last HTTP status seen by the heartbeat, 0 when unreachable.
	HeartbeatLastStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heartbeat_last_status_code",
			Help: "HTTP status code of the last heartbeat probe, 0 if the host was unreachable.",
		},
	)

	// ForwardTotal counts gateway forward attempts by transport and outcome.
	ForwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_forward_total",
			Help: "Total number of job forward attempts from the gateway to workers.",
		},
		[]string{"transport", "outcome"},
	)

	// WorkersKnown is the number of workers the gateway currently knows about.
	WorkersKnown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_workers_known",
			Help: "Number of worker endpoints currently discovered by the gateway.",
		},
	)
)
