package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "coscribe", Name: "sessions_connected", Help: "Number of currently connected editor sessions."},
	)
	DeltasRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "coscribe", Name: "deltas_relayed_total", Help: "Number of edit deltas fanned out to room peers."},
	)
	DeltasDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "coscribe", Name: "deltas_dropped_total", Help: "Number of deltas dropped because a recipient's send buffer was full."},
	)
	SavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "coscribe", Name: "saves_total", Help: "Autosave flush attempts by result."},
		[]string{"result"}, // ok | conflict | error
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "coscribe", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "coscribe", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SessionsConnected)
	reg.MustRegister(DeltasRelayed)
	reg.MustRegister(DeltasDropped)
	reg.MustRegister(SavesTotal)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
