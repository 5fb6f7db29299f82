// Package rest provides the HTTP transport adapter for the break
// engine: the JSON API, health, and Prometheus metrics.
package rest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
)

// Metrics holds all Prometheus metrics for breakdesk.
// Pass to components that need to record metrics.
type Metrics struct {
	BreaksStarted      *prometheus.CounterVec
	BreaksReturned     *prometheus.CounterVec
	OverdueTotal       *prometheus.CounterVec
	AdjudicationsTotal *prometheus.CounterVec
	ActiveBreaks       *prometheus.GaugeVec
	RequestDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		BreaksStarted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breakdesk",
				Name:      "breaks_started_total",
				Help:      "Total break sessions admitted",
			},
			[]string{"category"},
		),
		BreaksReturned: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breakdesk",
				Name:      "breaks_returned_total",
				Help:      "Total break returns by outcome",
			},
			[]string{"category", "outcome"}, // outcome=on_time/late
		),
		OverdueTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breakdesk",
				Name:      "breaks_overdue_total",
				Help:      "Total sessions that exceeded the break allowance",
			},
			[]string{"category"},
		),
		AdjudicationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "breakdesk",
				Name:      "adjudications_total",
				Help:      "Total adjudication verdicts",
			},
			[]string{"verdict"}, // verdict=cleared/fined
		),
		ActiveBreaks: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "breakdesk",
				Name:      "active_breaks",
				Help:      "Open break sessions occupying a category slot",
			},
			[]string{"category"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "breakdesk",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// HandleEvent adapts engine events onto the Prometheus counters, so
// the metrics stay consistent no matter which path (API call or timer)
// drove the transition.
func (m *Metrics) HandleEvent(evt breaks.Event) {
	switch evt.Kind {
	case breaks.EventStarted:
		m.BreaksStarted.WithLabelValues(evt.Category).Inc()
		m.ActiveBreaks.WithLabelValues(evt.Category).Inc()
	case breaks.EventReturnedOnTime:
		m.BreaksReturned.WithLabelValues(evt.Category, "on_time").Inc()
		m.ActiveBreaks.WithLabelValues(evt.Category).Dec()
	case breaks.EventOverdue:
		m.OverdueTotal.WithLabelValues(evt.Category).Inc()
	case breaks.EventReasonSubmitted:
		m.BreaksReturned.WithLabelValues(evt.Category, "late").Inc()
	case breaks.EventCleared:
		m.AdjudicationsTotal.WithLabelValues("cleared").Inc()
		m.ActiveBreaks.WithLabelValues(evt.Category).Dec()
	case breaks.EventFined:
		m.AdjudicationsTotal.WithLabelValues("fined").Inc()
		m.ActiveBreaks.WithLabelValues(evt.Category).Dec()
	}
}
