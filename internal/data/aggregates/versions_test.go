package aggregates

import (
	"context"
	"testing"

	repotest "github.com/prismbi/prism-backend/internal/data/repos/testutil"
	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
)

func TestDashboardAggregateListVersionsResolvesAuthors(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	u := repotest.SeedUser(t, ctx, f.tx, "author@example.com")
	d := repotest.SeedDashboard(t, ctx, f.tx, "listed")

	if _, err := f.agg.Update(ctx, ctxutil.Actor{UserID: u.ID}, d.ID, DashboardUpdate{DashboardTitle: strptr("one")}); err != nil {
		t.Fatalf("update 1: %v", err)
	}
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: strptr("two")}); err != nil {
		t.Fatalf("update 2: %v", err)
	}

	items, err := f.agg.ListVersions(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 items, got=%d", len(items))
	}
	if items[0].Version.VersionNumber != 2 || items[1].Version.VersionNumber != 1 {
		t.Fatalf("not newest-first: %d, %d", items[0].Version.VersionNumber, items[1].Version.VersionNumber)
	}
	if items[0].Author != nil {
		t.Fatalf("anonymous save should have no author, got=%+v", items[0].Author)
	}
	if items[1].Author == nil || items[1].Author.ID != u.ID || items[1].Author.DisplayName == "" {
		t.Fatalf("author not resolved: %+v", items[1].Author)
	}
}

func TestDashboardAggregateListVersionsUnknownDashboard(t *testing.T) {
	f := newAggFixture(t, Config{})
	_, err := f.agg.ListVersions(context.Background(), 424242)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found, got=%v", err)
	}
}

func TestDashboardAggregateGetVersionGuardsDashboard(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d1 := repotest.SeedDashboard(t, ctx, f.tx, "mine")
	d2 := repotest.SeedDashboard(t, ctx, f.tx, "theirs")
	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d1.ID, DashboardUpdate{DashboardTitle: strptr("v1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	v, err := f.agg.GetVersion(ctx, d1.ID, res.Version.ID)
	if err != nil || v == nil || v.ID != res.Version.ID {
		t.Fatalf("GetVersion own: v=%v err=%v", v, err)
	}

	_, err = f.agg.GetVersion(ctx, d2.ID, res.Version.ID)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found across dashboards, got=%v", err)
	}
}

func TestDashboardAggregateUpdateVersionComment(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "commented")
	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: strptr("v1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	v, err := f.agg.UpdateVersionComment(ctx, d.ID, res.Version.ID, strptr("before the redesign"))
	if err != nil {
		t.Fatalf("UpdateVersionComment: %v", err)
	}
	if v.Comment == nil || *v.Comment != "before the redesign" {
		t.Fatalf("comment: got=%v", v.Comment)
	}

	// Whitespace clears the comment instead of storing blanks.
	v, err = f.agg.UpdateVersionComment(ctx, d.ID, res.Version.ID, strptr("   "))
	if err != nil {
		t.Fatalf("clear comment: %v", err)
	}
	if v.Comment != nil {
		t.Fatalf("expected cleared comment, got=%q", *v.Comment)
	}

	// The comment never mutates the captured state.
	if string(v.PositionJSON) != string(res.Version.PositionJSON) {
		t.Fatalf("comment update touched position_json")
	}

	_, err = f.agg.UpdateVersionComment(ctx, d.ID+1, res.Version.ID, strptr("wrong dashboard"))
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found for wrong dashboard, got=%v", err)
	}
}
