package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge exposed on the /metrics endpoint (§6).
// It is a thin, ready-to-register Prometheus collector set rather than the
// original's hand-rolled atomics + printf body builder.
type Metrics struct {
	ConnectionsActive        prometheus.Gauge
	ConnectionsTotal         prometheus.Counter
	BytesClientToBackend     prometheus.Counter
	BytesBackendToClient     prometheus.Counter
	ServersTotal             prometheus.Gauge
	ServersHealthy           prometheus.Gauge
	ServersUnhealthy         prometheus.Gauge
}

// NewMetrics constructs and registers the metric set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pg_gateway_connections_active",
			Help: "Current number of active connections",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pg_gateway_connections_total",
			Help: "Total number of connections since start",
		}),
		BytesClientToBackend: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pg_gateway_bytes_client_to_backend_total",
			Help: "Total bytes transferred from clients to backend",
		}),
		BytesBackendToClient: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pg_gateway_bytes_backend_to_client_total",
			Help: "Total bytes transferred from backend to clients",
		}),
		ServersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pg_gateway_servers_total",
			Help: "Total number of configured backend servers",
		}),
		ServersHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pg_gateway_servers_healthy",
			Help: "Number of healthy backend servers",
		}),
		ServersUnhealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pg_gateway_servers_unhealthy",
			Help: "Number of unhealthy backend servers",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ConnectionsActive,
			m.ConnectionsTotal,
			m.BytesClientToBackend,
			m.BytesBackendToClient,
			m.ServersTotal,
			m.ServersHealthy,
			m.ServersUnhealthy,
		)
	}
	return m
}

// ConnectionOpened records a newly-accepted, routed connection.
func (m *Metrics) ConnectionOpened() {
	m.ConnectionsActive.Inc()
	m.ConnectionsTotal.Inc()
}

// ConnectionClosed records a torn-down connection.
func (m *Metrics) ConnectionClosed() {
	m.ConnectionsActive.Dec()
}

// SetServerCounts updates the server-health gauges from a discovery tick.
func (m *Metrics) SetServerCounts(total, healthy int) {
	m.ServersTotal.Set(float64(total))
	m.ServersHealthy.Set(float64(healthy))
	m.ServersUnhealthy.Set(float64(total - healthy))
}
