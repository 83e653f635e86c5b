package testutil

import (
	"context"
	"sync"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
)

// SinkRecorder captures post-commit events and cache invalidations in
// tests.
type SinkRecorder struct {
	mu sync.Mutex

	Events        []aggregates.Event
	Invalidations []int64

	// FailPublish makes Publish return this error; hooks must swallow
	// it without surfacing to the caller.
	FailPublish error
}

var _ aggregates.EventSink = (*SinkRecorder)(nil)

func (s *SinkRecorder) Publish(ctx context.Context, ev aggregates.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPublish != nil {
		return s.FailPublish
	}
	s.Events = append(s.Events, ev)
	return nil
}

func (s *SinkRecorder) InvalidateDashboard(ctx context.Context, dashboardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Invalidations = append(s.Invalidations, dashboardID)
	return nil
}
