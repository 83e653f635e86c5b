package aggregates

import (
	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
)

// snapshot appends a version row capturing the dashboard's current
// position and metadata, then trims the history down to the retention
// limit. Runs inside the caller's transaction so the snapshot and the
// save it records land or fail together.
func (a *DashboardAggregate) snapshot(dbc dbctx.Context, d *types.Dashboard, actor ctxutil.Actor, comment *string) (*types.DashboardVersion, error) {
	n, err := a.versions.NextVersionNumber(dbc, d.ID)
	if err != nil {
		return nil, err
	}
	v := &types.DashboardVersion{
		DashboardID:   d.ID,
		VersionNumber: n,
		PositionJSON:  cloneJSON(d.PositionJSON),
		MetadataJSON:  cloneJSON(d.Metadata),
		Comment:       comment,
	}
	if actor.UserID > 0 {
		uid := actor.UserID
		v.CreatedBy = &uid
	}
	if err := a.versions.Create(dbc, v); err != nil {
		return nil, err
	}
	if err := a.versions.Trim(dbc, d.ID, a.cfg.RetainVersions); err != nil {
		return nil, err
	}
	return v, nil
}
