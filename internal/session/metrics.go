package session

import "github.com/prometheus/client_golang/prometheus"

var (
	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_desk_platform_sessions",
			Help: "Current number of live messaging-platform sessions.",
		},
	)
	reconnectsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_desk_platform_reconnects_total",
			Help: "Total reconnect attempts scheduled after transient drops.",
		},
	)
	autoResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_desk_platform_auto_resets_total",
			Help: "Total automatic session resets after logout-classified disconnects.",
		},
	)
	unauthorizedSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_desk_platform_unauthorized_total",
			Help: "Sessions that reached the terminal unauthorized state.",
		},
	)
)

func init() {
	prometheus.MustRegister(liveSessions, reconnectsScheduled, autoResets, unauthorizedSessions)
}

func setLiveSessions(count int) {
	liveSessions.Set(float64(count))
}

func incReconnects() {
	reconnectsScheduled.Inc()
}

func incAutoResets() {
	autoResets.Inc()
}

func incUnauthorized() {
	unauthorizedSessions.Inc()
}
