package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes.
const (
	OutcomeResolved = "resolved"
	OutcomeLate     = "late"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
)

var (
	PendingCorrelations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paymenthub_pending_correlations",
			Help: "Current number of requests waiting for a downstream response",
		},
	)

	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paymenthub_resolutions_total",
			Help: "Correlation outcomes by kind",
		},
		[]string{"outcome"},
	)

	Routed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paymenthub_routed_total",
			Help: "Envelopes forwarded by the router by destination tag and address",
		},
		[]string{"destination", "address"},
	)

	SwitchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paymenthub_switch_attempts_total",
			Help: "Calls made to the external switch by result",
		},
		[]string{"result"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paymenthub_gateway_duration_seconds",
			Help:    "Time from accepted request to response by final status",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"status"},
	)
)
