package aggregates

import (
	"context"
	"fmt"

	types "github.com/prismbi/prism-backend/internal/domain"
	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
)

// VersionAuthor is the resolved creator of a version row.
type VersionAuthor struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// VersionListItem pairs a version row with its author, when the
// creating user still exists.
type VersionListItem struct {
	Version *types.DashboardVersion
	Author  *VersionAuthor
}

// ListVersions returns the history for a dashboard newest-first, with
// creator display names resolved in one batch.
func (a *DashboardAggregate) ListVersions(ctx context.Context, dashboardID int64) ([]VersionListItem, error) {
	dbc := dbctx.From(ctx)
	const op = "dashboard.versions.list"

	d, err := a.dashboards.GetByID(dbc, dashboardID)
	if err != nil {
		return nil, MapError(op, err)
	}
	if d == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("dashboard %d not found", dashboardID), nil)
	}

	rows, err := a.versions.ListForDashboard(dbc, dashboardID)
	if err != nil {
		return nil, MapError(op, err)
	}

	var creatorIDs []int64
	seen := map[int64]struct{}{}
	for _, v := range rows {
		if v.CreatedBy != nil {
			if _, ok := seen[*v.CreatedBy]; !ok {
				seen[*v.CreatedBy] = struct{}{}
				creatorIDs = append(creatorIDs, *v.CreatedBy)
			}
		}
	}
	authors := map[int64]*VersionAuthor{}
	if len(creatorIDs) > 0 {
		users, err := a.users.GetByIDs(dbc, creatorIDs)
		if err != nil {
			return nil, MapError(op, err)
		}
		for _, u := range users {
			authors[u.ID] = &VersionAuthor{ID: u.ID, DisplayName: u.DisplayName()}
		}
	}

	items := make([]VersionListItem, 0, len(rows))
	for _, v := range rows {
		item := VersionListItem{Version: v}
		if v.CreatedBy != nil {
			item.Author = authors[*v.CreatedBy]
		}
		items = append(items, item)
	}
	return items, nil
}

// GetVersion returns one version row, guarding that it belongs to the
// dashboard named in the path.
func (a *DashboardAggregate) GetVersion(ctx context.Context, dashboardID, versionID int64) (*types.DashboardVersion, error) {
	dbc := dbctx.From(ctx)
	const op = "dashboard.versions.get"

	v, err := a.versions.GetByID(dbc, versionID)
	if err != nil {
		return nil, MapError(op, err)
	}
	if v == nil || v.DashboardID != dashboardID {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("version %d not found for dashboard %d", versionID, dashboardID), nil)
	}
	return v, nil
}

// UpdateVersionComment sets or clears the one mutable field a version
// row has. Everything else in the row stays frozen.
func (a *DashboardAggregate) UpdateVersionComment(ctx context.Context, dashboardID, versionID int64, comment *string) (*types.DashboardVersion, error) {
	const op = "dashboard.versions.comment"

	var out *types.DashboardVersion
	err := a.tx.InTx(ctx, func(dbc dbctx.Context) error {
		v, err := a.versions.UpdateComment(dbc, versionID, dashboardID, comment)
		if err != nil {
			return err
		}
		if v == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op,
				fmt.Sprintf("version %d not found for dashboard %d", versionID, dashboardID), nil)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, MapError(op, err)
	}
	return out, nil
}
