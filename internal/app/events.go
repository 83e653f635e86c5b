package app

import (
	"context"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
	"github.com/prismbi/prism-backend/internal/observability"
)

// metricsSink decorates an event sink with publish/invalidation counters.
type metricsSink struct {
	next aggregates.EventSink
	m    *observability.Metrics
}

func withSinkMetrics(next aggregates.EventSink, m *observability.Metrics) aggregates.EventSink {
	if m == nil {
		return next
	}
	return &metricsSink{next: next, m: m}
}

func (s *metricsSink) Publish(ctx context.Context, ev aggregates.Event) error {
	if err := s.next.Publish(ctx, ev); err != nil {
		return err
	}
	s.m.IncEventPublished(ev.Type)
	return nil
}

func (s *metricsSink) InvalidateDashboard(ctx context.Context, dashboardID int64) error {
	if err := s.next.InvalidateDashboard(ctx, dashboardID); err != nil {
		return err
	}
	s.m.IncCacheInvalidation()
	return nil
}
