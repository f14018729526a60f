// Package metrics exposes the executor's prometheus series:
//
//	cloneexec_ticks_total{outcome}                   ticks by outcome (ok|retry|fail)
//	cloneexec_orders_total{mode,direction,status}    orders submitted and how they ended
//	cloneexec_exits_total{outcome}                   protective exits (SL|TP)
//	cloneexec_signal_transitions_total{to}           review queue pushes by target state
//	cloneexec_dedup_skips_total                      records skipped as already handled
//	cloneexec_last_tick_timestamp_seconds            wall time of the last finished tick
//
// All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ticks       *prometheus.CounterVec
	orders      *prometheus.CounterVec
	exits       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	dedupSkips  prometheus.Counter
	lastTick    prometheus.Gauge
}

// New builds the series and registers them on reg. A nil reg registers on
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "cloneexec_ticks_total", Help: "Ticks by outcome"},
			[]string{"outcome"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "cloneexec_orders_total", Help: "Orders by mode, direction and status"},
			[]string{"mode", "direction", "status"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "cloneexec_exits_total", Help: "Protective exits by outcome"},
			[]string{"outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "cloneexec_signal_transitions_total", Help: "Review queue pushes by target state"},
			[]string{"to"},
		),
		dedupSkips: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "cloneexec_dedup_skips_total", Help: "Records skipped as already handled"},
		),
		lastTick: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "cloneexec_last_tick_timestamp_seconds", Help: "Unix time of the last finished tick"},
		),
	}
	reg.MustRegister(m.ticks, m.orders, m.exits, m.transitions, m.dedupSkips, m.lastTick)
	return m
}

func (m *Metrics) Tick(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	m.lastTick.Set(float64(at.Unix()))
}

func (m *Metrics) Order(mode, direction, status string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(mode, direction, status).Inc()
}

func (m *Metrics) Exit(outcome string) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) DedupSkip() {
	if m == nil {
		return
	}
	m.dedupSkips.Inc()
}
