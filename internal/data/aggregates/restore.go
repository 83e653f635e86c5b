package aggregates

import (
	"context"
	"fmt"

	"gorm.io/datatypes"

	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/layout"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
)

// Restore overwrites a dashboard's layout and metadata with the state a
// version row captured, re-syncs the link table from the restored
// layout, prunes chart references the database no longer knows, and
// snapshots the restored state as a new version. The version log itself
// is never rewound.
func (a *DashboardAggregate) Restore(ctx context.Context, actor ctxutil.Actor, dashboardID, versionID int64) (*UpdateResult, error) {
	var out *UpdateResult
	var hooks []PostCommitHook

	err := a.withConflictRetry(ctx, "dashboard.restore", func(dbc dbctx.Context) error {
		hooks = hooks[:0]

		d, err := a.dashboards.GetByID(dbc, dashboardID)
		if err != nil {
			return err
		}
		if d == nil {
			return domainagg.NewError(domainagg.CodeNotFound, "dashboard.restore",
				fmt.Sprintf("dashboard %d not found", dashboardID), nil)
		}
		v, err := a.versions.GetByID(dbc, versionID)
		if err != nil {
			return err
		}
		if v == nil || v.DashboardID != d.ID {
			return domainagg.NewError(domainagg.CodeNotFound, "dashboard.restore",
				fmt.Sprintf("version %d not found for dashboard %d", versionID, dashboardID), nil)
		}
		if err := a.auth.CanWriteDashboard(dbc.Ctx, actor, d); err != nil {
			return domainagg.Wrap(domainagg.CodeForbidden, "dashboard.restore", err)
		}

		d.PositionJSON = cloneJSON(v.PositionJSON)
		d.Metadata = cloneJSON(v.MetadataJSON)

		var linked []int64
		tree := layout.Parse(d.PositionJSON)
		if tree == nil {
			if err := a.links.ReplaceForDashboard(dbc, d.ID, nil); err != nil {
				return err
			}
		} else {
			linked, err = a.syncFromLayout(dbc, d, tree)
			if err != nil {
				return err
			}
			// Charts deleted since the version was taken would leave
			// dangling CHART nodes; drop them but keep their containers.
			tree.PruneOrphanCharts(layout.ValidSet(linked))
			d.PositionJSON = datatypes.JSON(tree.Serialize())
		}

		if err := a.dashboards.Save(dbc, d); err != nil {
			return err
		}

		nv, err := a.snapshot(dbc, d, actor, nil)
		if err != nil {
			return err
		}

		hooks = append(hooks,
			publishHook(a.sink, a.log, Event{Type: EventDashboardRestored, DashboardID: d.ID, VersionNumber: nv.VersionNumber}),
			invalidateHook(a.sink, a.log, d.ID),
		)
		out = &UpdateResult{Dashboard: d, Version: nv, LinkedSliceIDs: linked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	runHooks(ctx, hooks)
	return out, nil
}
