package database

import "github.com/prometheus/client_golang/prometheus"

var tenantConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "support_desk_tenant_db_connections",
		Help: "Current number of cached tenant database connections.",
	},
)

func init() {
	prometheus.MustRegister(tenantConnections)
}

func setTenantConnections(count int) {
	tenantConnections.Set(float64(count))
}
