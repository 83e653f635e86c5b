package aggregates

import (
	"context"

	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// Event is a post-commit notification about a dashboard mutation.
// Replaces the source system's ORM after_update listeners: the pipeline
// collects hooks while the transaction is open and fires them only after
// a successful commit, so observers never see uncommitted state.
type Event struct {
	Type          string `json:"type"`
	DashboardID   int64  `json:"dashboard_id"`
	VersionNumber int    `json:"version_number,omitempty"`
}

const (
	EventDashboardUpdated  = "dashboard.updated"
	EventDashboardRestored = "dashboard.restored"
	EventDashboardImported = "dashboard.imported"
)

// EventSink receives post-commit events and cache invalidations.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
	InvalidateDashboard(ctx context.Context, dashboardID int64) error
}

type noopSink struct{}

func (noopSink) Publish(context.Context, Event) error { return nil }
func (noopSink) InvalidateDashboard(context.Context, int64) error { return nil }

// NoopSink is used when no event transport is configured.
func NoopSink() EventSink { return noopSink{} }

// PostCommitHook runs after the enclosing transaction committed. Hook
// failures are logged, never surfaced: the write already happened.
type PostCommitHook func(ctx context.Context)

func runHooks(ctx context.Context, hooks []PostCommitHook) {
	for _, hook := range hooks {
		if hook != nil {
			hook(ctx)
		}
	}
}

func publishHook(sink EventSink, log *logger.Logger, ev Event) PostCommitHook {
	return func(ctx context.Context) {
		if err := sink.Publish(ctx, ev); err != nil && log != nil {
			log.Warn("post-commit event publish failed", "type", ev.Type, "dashboard_id", ev.DashboardID, "error", err)
		}
	}
}

func invalidateHook(sink EventSink, log *logger.Logger, dashboardID int64) PostCommitHook {
	return func(ctx context.Context) {
		if err := sink.InvalidateDashboard(ctx, dashboardID); err != nil && log != nil {
			log.Warn("post-commit cache invalidation failed", "dashboard_id", dashboardID, "error", err)
		}
	}
}
