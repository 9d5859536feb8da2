// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package messaging

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jancy-plugins/namath-provider/internal/cart"
)

// Metrics holds the channel's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	CartsSent       prometheus.Counter
	Decisions       *prometheus.CounterVec
	Signals         *prometheus.CounterVec
	ReviewFailures  prometheus.Counter
	ListenersActive prometheus.Gauge
}

// NewMetrics creates and registers channel metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "namath_carts_sent_total",
			Help: "Total number of carts sent through the channel",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "namath_decisions_total",
			Help: "Total number of published decisions by outcome",
		}, []string{"outcome"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "namath_signals_total",
			Help: "Total number of bump, expire, and test signals by kind and result",
		}, []string{"kind", "result"}),
		ReviewFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "namath_review_failures_total",
			Help: "Total number of decision source failures",
		}),
		ListenersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "namath_listeners_active",
			Help: "Registered decision listeners, one-shot waiters included",
		}),
	}

	reg.MustRegister(m.CartsSent, m.Decisions, m.Signals, m.ReviewFailures, m.ListenersActive)
	return m
}

func (m *Metrics) sent() {
	if m == nil {
		return
	}
	m.CartsSent.Inc()
}

func (m *Metrics) decision(d cart.Decision) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(d.Approval.String()).Inc()
}

func (m *Metrics) signal(kind SignalKind, found bool) {
	if m == nil {
		return
	}
	result := "found"
	if !found {
		result = "not_found"
	}
	m.Signals.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) reviewFailed() {
	if m == nil {
		return
	}
	m.ReviewFailures.Inc()
}

func (m *Metrics) listeners(n int) {
	if m == nil {
		return
	}
	m.ListenersActive.Set(float64(n))
}
