package aggregates

import (
	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/layout"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
)

// syncFromLayout makes the layout the source of truth for the link
// table: the existing rows for the dashboard are replaced with one row
// per chart the layout references and the database knows about. Chart
// ids the layout mentions but the slices table does not are silently
// dropped from the link set.
func (a *DashboardAggregate) syncFromLayout(dbc dbctx.Context, d *types.Dashboard, tree *layout.Tree) ([]int64, error) {
	ids := tree.ChartIDs()
	valid, err := a.existingSliceIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	if err := a.links.ReplaceForDashboard(dbc, d.ID, valid); err != nil {
		return nil, err
	}
	return valid, nil
}

// existingSliceIDs filters ids down to those present in the slices
// table, preserving the sorted order ChartIDs produces.
func (a *DashboardAggregate) existingSliceIDs(dbc dbctx.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := a.slices.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	known := make(map[int64]struct{}, len(rows))
	for _, s := range rows {
		known[s.ID] = struct{}{}
	}
	valid := make([]int64, 0, len(rows))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			valid = append(valid, id)
		}
	}
	return valid, nil
}
