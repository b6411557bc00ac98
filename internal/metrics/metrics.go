// Package metrics holds the Prometheus collectors of the signaling server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Connections   prometheus.Gauge
	Rooms         prometheus.Gauge
	Members       prometheus.Gauge
	Joins         prometheus.Counter
	Leaves        prometheus.Counter
	Disconnects   *prometheus.CounterVec
	Relayed       *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	InvalidInputs *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rendezvous", Name: "connections_open", Help: "Live signaling connections.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rendezvous", Name: "rooms", Help: "Rooms held by the registry.",
		}),
		Members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rendezvous", Name: "room_members", Help: "Memberships across all rooms.",
		}),
		Joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendezvous", Name: "joins_total", Help: "Accepted joins.",
		}),
		Leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendezvous", Name: "leaves_total", Help: "Explicit leaves that removed a member.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous", Name: "disconnects_total", Help: "Transport disconnects by reason.",
		}, []string{"reason"}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous", Name: "relayed_messages_total", Help: "Signaling messages relayed, by event.",
		}, []string{"event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous", Name: "dropped_deliveries_total", Help: "Deliveries that did not reach a connection.",
		}, []string{"cause"}),
		InvalidInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous", Name: "invalid_requests_total", Help: "Inbound messages rejected by validation, by event.",
		}, []string{"event"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.Connections, m.Rooms, m.Members, m.Joins, m.Leaves,
		m.Disconnects, m.Relayed, m.Dropped, m.InvalidInputs,
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveRegistry copies registry totals into the gauges.
func (m *Metrics) ObserveRegistry(rooms, members int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(rooms))
	m.Members.Set(float64(members))
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnClosed(reason string) {
	if m != nil {
		m.Connections.Dec()
		m.Disconnects.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Joined() {
	if m != nil {
		m.Joins.Inc()
	}
}

func (m *Metrics) Left() {
	if m != nil {
		m.Leaves.Inc()
	}
}

func (m *Metrics) Relay(event string) {
	if m != nil {
		m.Relayed.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Drop(cause string) {
	if m != nil {
		m.Dropped.WithLabelValues(cause).Inc()
	}
}

func (m *Metrics) Invalid(event string) {
	if m != nil {
		m.InvalidInputs.WithLabelValues(event).Inc()
	}
}

// Handler exposes the collectors at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
