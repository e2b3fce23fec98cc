package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tableserve"

// OrderMetrics counts placements and status transitions.
type OrderMetrics struct {
	placed      prometheus.Counter
	failed      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	partial     prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders committed by the writer.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_failed_total",
		Help:      "Order placements rejected or failed, by reason.",
	}, []string{"reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions applied.",
	}, []string{"from", "to"})
	partial := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_readback_partial_total",
		Help:      "Committed orders whose read-back failed and returned partial data.",
	})
	reg.MustRegister(placed, failed, transitions, partial)
	return &OrderMetrics{placed: placed, failed: failed, transitions: transitions, partial: partial}
}

func (m *OrderMetrics) IncPlaced() {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
}

func (m *OrderMetrics) IncFailed(reason string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OrderMetrics) IncPartialReadBack() {
	if m == nil || m.partial == nil {
		return
	}
	m.partial.Inc()
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// SettlementMetrics counts settlement initiations and gateway callbacks.
type SettlementMetrics struct {
	initiated *prometheus.CounterVec
	callbacks *prometheus.CounterVec
}

func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	initiated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_initiated_total",
		Help:      "Settlement operations by kind (group, split, split_pay) and outcome.",
	}, []string{"kind", "outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_callbacks_total",
		Help:      "Gateway callbacks by kind, reported status and outcome.",
	}, []string{"kind", "status", "outcome"})
	reg.MustRegister(initiated, callbacks)
	return &SettlementMetrics{initiated: initiated, callbacks: callbacks}
}

func (m *SettlementMetrics) IncInitiated(kind, outcome string) {
	if m == nil || m.initiated == nil {
		return
	}
	m.initiated.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncCallback(kind, status, outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(kind), normalizeLabel(status), normalizeLabel(outcome)).Inc()
}

// RealtimeMetrics tracks websocket sessions.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	dropped     prometheus.Counter
	sent        *prometheus.CounterVec
}

func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open websocket connections.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_slow_clients_dropped_total",
		Help:      "Connections closed because their send buffer was full.",
	})
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_events_sent_total",
		Help:      "Events enqueued to websocket clients.",
	}, []string{"event"})
	reg.MustRegister(connections, dropped, sent)
	return &RealtimeMetrics{connections: connections, dropped: dropped, sent: sent}
}

func (m *RealtimeMetrics) Connected() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Inc()
}

func (m *RealtimeMetrics) Disconnected() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Dec()
}

func (m *RealtimeMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}

func (m *RealtimeMetrics) IncSent(event string) {
	if m == nil || m.sent == nil {
		return
	}
	m.sent.WithLabelValues(normalizeLabel(event)).Inc()
}
