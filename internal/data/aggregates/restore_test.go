package aggregates

import (
	"context"
	"testing"

	repotest "github.com/prismbi/prism-backend/internal/data/repos/testutil"
	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/layout"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
)

func TestDashboardAggregateRestoreHappyPath(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "restorable")
	s1 := repotest.SeedSlice(t, ctx, f.tx, "kept")
	s2 := repotest.SeedSlice(t, ctx, f.tx, "removed-later")

	both := chartLayout(s1.ID, s2.ID)
	first, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &both})
	if err != nil {
		t.Fatalf("update v1: %v", err)
	}

	only := chartLayout(s1.ID)
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &only}); err != nil {
		t.Fatalf("update v2: %v", err)
	}

	res, err := f.agg.Restore(ctx, ctxutil.Anonymous(), d.ID, first.Version.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Version.VersionNumber != 3 {
		t.Fatalf("restore must append, got version %d", res.Version.VersionNumber)
	}
	if string(res.Dashboard.PositionJSON) != string(first.Version.PositionJSON) {
		t.Fatalf("restored position does not match the version")
	}

	want := sortedCopy([]int64{s1.ID, s2.ID})
	got, err := f.links.ListSliceIDs(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListSliceIDs: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("links after restore: want=%v got=%v", want, got)
	}

	// The history itself is never rewound.
	rows, err := f.versions.ListForDashboard(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListForDashboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 versions, got=%d", len(rows))
	}
}

func TestDashboardAggregateRestorePrunesDeletedCharts(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "pruned")
	s1 := repotest.SeedSlice(t, ctx, f.tx, "survivor")
	s2 := repotest.SeedSlice(t, ctx, f.tx, "doomed")

	both := chartLayout(s1.ID, s2.ID)
	first, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &both})
	if err != nil {
		t.Fatalf("update v1: %v", err)
	}

	if err := f.slices.DeleteByIDs(f.dbc, []int64{s2.ID}); err != nil {
		t.Fatalf("delete slice: %v", err)
	}

	res, err := f.agg.Restore(ctx, ctxutil.Anonymous(), d.ID, first.Version.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := f.links.ListSliceIDs(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListSliceIDs: %v", err)
	}
	if len(got) != 1 || got[0] != s1.ID {
		t.Fatalf("links after prune: got=%v", got)
	}

	tree := layout.Parse(res.Dashboard.PositionJSON)
	if tree == nil {
		t.Fatalf("restored layout does not parse")
	}
	ids := tree.ChartIDs()
	if len(ids) != 1 || ids[0] != s1.ID {
		t.Fatalf("layout still references deleted chart: %v", ids)
	}
	// Containers survive the prune.
	if tree.Get(layout.GridID) == nil {
		t.Fatalf("grid container lost")
	}

	// The new snapshot records the pruned state, not the stale one.
	if string(res.Version.PositionJSON) != string(res.Dashboard.PositionJSON) {
		t.Fatalf("snapshot diverges from stored layout")
	}
}

func TestDashboardAggregateRestoreVersionOfOtherDashboard(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d1 := repotest.SeedDashboard(t, ctx, f.tx, "owner")
	d2 := repotest.SeedDashboard(t, ctx, f.tx, "intruder")

	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d1.ID, DashboardUpdate{DashboardTitle: strptr("v1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = f.agg.Restore(ctx, ctxutil.Anonymous(), d2.ID, res.Version.ID)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found for cross-dashboard restore, got=%v", err)
	}
}

func TestDashboardAggregateRestoreEmptyVersionClearsLinks(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "emptied")
	s1 := repotest.SeedSlice(t, ctx, f.tx, "linked")

	empty := "{}"
	first, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &empty})
	if err != nil {
		t.Fatalf("update v1: %v", err)
	}

	pos := chartLayout(s1.ID)
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &pos}); err != nil {
		t.Fatalf("update v2: %v", err)
	}

	if _, err := f.agg.Restore(ctx, ctxutil.Anonymous(), d.ID, first.Version.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := f.links.ListSliceIDs(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListSliceIDs: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("links not cleared by empty restore: got=%v", got)
	}
}

func TestDashboardAggregateRestoreForbidden(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "guarded")
	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: strptr("v1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	f.agg.auth = denyAll{}
	_, err = f.agg.Restore(ctx, ctxutil.Anonymous(), d.ID, res.Version.ID)
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("expected forbidden, got=%v", err)
	}
}
