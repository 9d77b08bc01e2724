package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the session counters, labeled by game. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reconnects *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	batches    *prometheus.CounterVec
	pending    *prometheus.GaugeVec
}

// NewMetrics registers the session metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scorelog_session_reconnects_total",
			Help: "Reconnection attempts scheduled, by game",
		}, []string{"game"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scorelog_session_conflicts_total",
			Help: "Conflicts received, by game and resolution",
		}, []string{"game", "resolution"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scorelog_session_batches_total",
			Help: "Fallback batch submissions, by game and result",
		}, []string{"game", "result"}),
		pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scorelog_session_pending_actions",
			Help: "Locally submitted actions awaiting acknowledgment",
		}, []string{"game"}),
	}
}

func (m *Metrics) reconnect(game string) {
	if m != nil {
		m.reconnects.WithLabelValues(game).Inc()
	}
}

func (m *Metrics) conflict(game, resolution string) {
	if m != nil {
		m.conflicts.WithLabelValues(game, resolution).Inc()
	}
}

func (m *Metrics) batch(game, result string) {
	if m != nil {
		m.batches.WithLabelValues(game, result).Inc()
	}
}

func (m *Metrics) setPending(game string, n int) {
	if m != nil {
		m.pending.WithLabelValues(game).Set(float64(n))
	}
}
