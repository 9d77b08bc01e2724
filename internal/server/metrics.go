package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the server counters. A nil *Metrics records nothing.
type Metrics struct {
	appended  *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	channels  prometheus.Gauge
}

// NewMetrics registers the server metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		appended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scorelog_server_actions_appended_total",
			Help: "Actions appended to authoritative logs, by transport",
		}, []string{"transport"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scorelog_server_conflicts_total",
			Help: "Submissions rejected for a stale base revision, by transport",
		}, []string{"transport"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scorelog_server_rejected_total",
			Help: "Submissions rejected for other reasons",
		}, []string{"reason"}),
		channels: f.NewGauge(prometheus.GaugeOpts{
			Name: "scorelog_server_open_channels",
			Help: "Open websocket channels",
		}),
	}
}

func (m *Metrics) appendedN(transport string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.appended.WithLabelValues(transport).Add(float64(n))
}

func (m *Metrics) conflict(transport string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(transport).Inc()
}

func (m *Metrics) reject(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) channelOpened() {
	if m == nil {
		return
	}
	m.channels.Inc()
}

func (m *Metrics) channelClosed() {
	if m == nil {
		return
	}
	m.channels.Dec()
}
