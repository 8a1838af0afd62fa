package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
)

// PrometheusSink exports progress counters via Prometheus.
type PrometheusSink struct {
	events       *prometheus.CounterVec
	pageDuration *prometheus.HistogramVec
	runDuration  prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vbw_progress_events_total",
			Help: "Progress events partitioned by stage.",
		}, []string{"stage"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vbw_progress_page_duration_seconds",
			Help:    "Page load duration partitioned by page kind and outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind", "outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vbw_progress_run_duration_seconds",
			Help:    "Wall time of completed scrape runs.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
	}
	for _, collector := range []prometheus.Collector{s.events, s.pageDuration, s.runDuration} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.events.WithLabelValues(string(evt.Stage)).Inc()
		switch evt.Stage {
		case progress.StagePageDone:
			s.pageDuration.WithLabelValues(evt.Kind, "ok").Observe(evt.Dur.Seconds())
		case progress.StagePageError:
			s.pageDuration.WithLabelValues(evt.Kind, "error").Observe(evt.Dur.Seconds())
		case progress.StageRunDone:
			if evt.Dur > 0 {
				s.runDuration.Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
