package activitymap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-accounts"
)

// MetricsSink counts account events by verb and outcome.
type MetricsSink struct {
	EventsTotal *prometheus.CounterVec
}

var _ accounts.ActivitySink = (*MetricsSink)(nil)

// NewMetricsSink creates and registers the account event counters.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	m := &MetricsSink{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_activity_events_total",
				Help: "Total number of account events by verb and outcome",
			},
			[]string{"verb", "outcome"},
		),
	}

	reg.MustRegister(m.EventsTotal)

	return m
}

func (m *MetricsSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	m.EventsTotal.WithLabelValues(string(event.EventType), Outcome(event.EventType)).Inc()
	return nil
}
