package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the order-engine counters exported at /metrics.
type Metrics struct {
	registry *prometheus.Registry

	OrdersGenerated  prometheus.Counter
	OrdersServed     prometheus.Counter
	OrdersExpired    prometheus.Counter
	GameOvers        prometheus.Counter
	ConnectedPlayers prometheus.Gauge
}

// NewMetrics builds a collector set on its own registry so tests can create
// as many instances as they need.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		OrdersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bistro_orders_generated_total",
			Help: "Orders created by the generator",
		}),
		OrdersServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bistro_orders_served_total",
			Help: "Orders served before their deadline",
		}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bistro_orders_expired_total",
			Help: "Orders that expired with a penalty applied",
		}),
		GameOvers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bistro_game_overs_total",
			Help: "Sessions ended by satisfaction dropping below zero",
		}),
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bistro_connected_players",
			Help: "Users with an active generation loop",
		}),
	}

	registry.MustRegister(m.OrdersGenerated, m.OrdersServed, m.OrdersExpired, m.GameOvers, m.ConnectedPlayers)

	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
