package aggregates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	repobi "github.com/prismbi/prism-backend/internal/data/repos/bi"
	repouser "github.com/prismbi/prism-backend/internal/data/repos/user"
	repotest "github.com/prismbi/prism-backend/internal/data/repos/testutil"
	types "github.com/prismbi/prism-backend/internal/domain"
	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
	"gorm.io/gorm"
)

type recordingSink struct {
	events        []Event
	invalidations []int64
}

func (s *recordingSink) Publish(_ context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) InvalidateDashboard(_ context.Context, id int64) error {
	s.invalidations = append(s.invalidations, id)
	return nil
}

type denyAll struct{}

func (denyAll) CanWriteDashboard(context.Context, ctxutil.Actor, *types.Dashboard) error {
	return errors.New("no write access")
}

type aggFixture struct {
	tx       *gorm.DB
	dbc      dbctx.Context
	agg      *DashboardAggregate
	sink     *recordingSink
	versions repobi.VersionStore
	links    repobi.DashboardSliceRepo
	slices   repobi.SliceRepo
}

func newAggFixture(t *testing.T, cfg Config) *aggFixture {
	t.Helper()
	gdb := repotest.DB(t)
	tx := repotest.Tx(t, gdb)
	log := repotest.Logger(t)

	dashboards := repobi.NewDashboardRepo(tx, log)
	links := repobi.NewDashboardSliceRepo(tx, log)
	slices := repobi.NewSliceRepo(tx, log)
	versions := repobi.NewVersionStore(tx, log)
	users := repouser.NewUserRepo(tx, log)
	sink := &recordingSink{}

	if cfg.LayoutSchemaKey == "" {
		cfg.LayoutSchemaKey = "v2"
	}
	agg := NewDashboardAggregate(cfg, NewGormTxRunner(tx), dashboards, links, slices, versions, users, AllowAll(), sink, log)
	return &aggFixture{
		tx:       tx,
		dbc:      dbctx.Context{Ctx: context.Background(), Tx: tx},
		agg:      agg,
		sink:     sink,
		versions: versions,
		links:    links,
		slices:   slices,
	}
}

// chartLayout builds a minimal valid layout document with one CHART
// node per slice id under the grid.
func chartLayout(sliceIDs ...int64) string {
	doc := map[string]any{
		"DASHBOARD_VERSION_KEY": "v2",
	}
	gridChildren := make([]string, 0, len(sliceIDs))
	for i, id := range sliceIDs {
		nodeID := fmt.Sprintf("CHART-%d", i+1)
		gridChildren = append(gridChildren, nodeID)
		doc[nodeID] = map[string]any{
			"id":       nodeID,
			"type":     "CHART",
			"children": []string{},
			"meta":     map[string]any{"chartId": id},
		}
	}
	doc["ROOT_ID"] = map[string]any{"id": "ROOT_ID", "type": "ROOT", "children": []string{"GRID_ID"}}
	doc["GRID_ID"] = map[string]any{"id": "GRID_ID", "type": "GRID", "children": gridChildren}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func strptr(s string) *string { return &s }

func sortedCopy(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestDashboardAggregateUpdateSyncsLinksAndSnapshots(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "sales")
	s1 := repotest.SeedSlice(t, ctx, f.tx, "revenue")
	s2 := repotest.SeedSlice(t, ctx, f.tx, "orders")

	pos := chartLayout(s1.ID, s2.ID, 9_999_999)
	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{
		DashboardTitle: strptr("Sales Overview"),
		PositionJSON:   &pos,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Dashboard.DashboardTitle != "Sales Overview" {
		t.Fatalf("title: got=%q", res.Dashboard.DashboardTitle)
	}
	if res.Version == nil || res.Version.VersionNumber != 1 {
		t.Fatalf("expected version 1, got=%+v", res.Version)
	}

	// The unknown chart id is dropped from the link set.
	want := sortedCopy([]int64{s1.ID, s2.ID})
	got, err := f.links.ListSliceIDs(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListSliceIDs: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("links: want=%v got=%v", want, got)
	}

	// Snapshot captures the post-save state.
	v, err := f.versions.GetByID(f.dbc, res.Version.ID)
	if err != nil || v == nil {
		t.Fatalf("GetByID version: v=%v err=%v", v, err)
	}
	if string(v.PositionJSON) != string(res.Dashboard.PositionJSON) {
		t.Fatalf("version position does not match dashboard position")
	}
}

func TestDashboardAggregateUpdateWithoutLayoutKeepsLinks(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "metrics")
	s1 := repotest.SeedSlice(t, ctx, f.tx, "chart-a")

	pos := chartLayout(s1.ID)
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &pos}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: strptr("Renamed")})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if res.Version.VersionNumber != 2 {
		t.Fatalf("expected version 2, got=%d", res.Version.VersionNumber)
	}

	got, err := f.links.ListSliceIDs(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListSliceIDs: %v", err)
	}
	if len(got) != 1 || got[0] != s1.ID {
		t.Fatalf("links changed by title-only update: got=%v", got)
	}
}

func TestDashboardAggregateUpdateEmptyLayoutClearsLinks(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "clearing")
	s1 := repotest.SeedSlice(t, ctx, f.tx, "chart-b")

	pos := chartLayout(s1.ID)
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &pos}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	empty := "{}"
	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &empty})
	if err != nil {
		t.Fatalf("clearing update: %v", err)
	}
	if len(res.LinkedSliceIDs) != 0 {
		t.Fatalf("expected no links, got=%v", res.LinkedSliceIDs)
	}
	got, err := f.links.ListSliceIDs(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListSliceIDs: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("link table not cleared: got=%v", got)
	}
}

func TestDashboardAggregateUpdateRejectsMalformedLayout(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "broken")
	bad := `{"ROOT_ID": "not a component"`
	_, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &bad})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error, got=%v", err)
	}

	// The rejected save must leave no version row behind.
	rows, err := f.versions.ListForDashboard(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListForDashboard: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no versions after rollback, got=%d", len(rows))
	}
}

func TestDashboardAggregateUpdateRejectsLayoutWithoutSkeleton(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "no-skeleton")
	bad := `{"CHART-1":{"id":"CHART-1","type":"CHART","meta":{"chartId":1}}}`
	_, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &bad})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error, got=%v", err)
	}
}

func TestDashboardAggregateUpdateSlugConflict(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d1 := repotest.SeedDashboard(t, ctx, f.tx, "first")
	d2 := repotest.SeedDashboard(t, ctx, f.tx, "second")

	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d1.ID, DashboardUpdate{Slug: strptr("weekly-report")}); err != nil {
		t.Fatalf("claim slug: %v", err)
	}
	_, err := f.agg.Update(ctx, ctxutil.Anonymous(), d2.ID, DashboardUpdate{Slug: strptr("weekly-report")})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error for duplicate slug, got=%v", err)
	}

	// Re-saving the same slug on the owning dashboard stays legal.
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d1.ID, DashboardUpdate{Slug: strptr("weekly-report")}); err != nil {
		t.Fatalf("re-save own slug: %v", err)
	}
}

func TestDashboardAggregateRetentionTrim(t *testing.T) {
	f := newAggFixture(t, Config{RetainVersions: 2})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "trimmed")
	for i := 0; i < 4; i++ {
		title := fmt.Sprintf("pass %d", i+1)
		if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: &title}); err != nil {
			t.Fatalf("update %d: %v", i+1, err)
		}
	}

	rows, err := f.versions.ListForDashboard(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListForDashboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("retention: want=2 got=%d", len(rows))
	}
	if rows[0].VersionNumber != 4 || rows[1].VersionNumber != 3 {
		t.Fatalf("kept wrong versions: %d, %d", rows[0].VersionNumber, rows[1].VersionNumber)
	}
}

func TestDashboardAggregateUpdateNotFound(t *testing.T) {
	f := newAggFixture(t, Config{})
	_, err := f.agg.Update(context.Background(), ctxutil.Anonymous(), 987654, DashboardUpdate{DashboardTitle: strptr("x")})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found, got=%v", err)
	}
}

func TestDashboardAggregateUpdateForbidden(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "locked")
	f.agg.auth = denyAll{}

	_, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: strptr("nope")})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("expected forbidden, got=%v", err)
	}
	rows, err := f.versions.ListForDashboard(f.dbc, d.ID)
	if err != nil {
		t.Fatalf("ListForDashboard: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("forbidden update still wrote a version")
	}
}

func TestDashboardAggregateUpdateRecordsActor(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	u := repotest.SeedUser(t, ctx, f.tx, "editor@example.com")
	d := repotest.SeedDashboard(t, ctx, f.tx, "authored")

	res, err := f.agg.Update(ctx, ctxutil.Actor{UserID: u.ID}, d.ID, DashboardUpdate{
		DashboardTitle:     strptr("Authored"),
		VersionDescription: strptr("initial publish"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Version.CreatedBy == nil || *res.Version.CreatedBy != u.ID {
		t.Fatalf("created_by: got=%v want=%d", res.Version.CreatedBy, u.ID)
	}
	if res.Version.Comment == nil || *res.Version.Comment != "initial publish" {
		t.Fatalf("comment: got=%v", res.Version.Comment)
	}
}

func TestDashboardAggregatePostCommitHooks(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "notified")
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{DashboardTitle: strptr("Notified")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(f.sink.events) != 1 || f.sink.events[0].Type != EventDashboardUpdated || f.sink.events[0].DashboardID != d.ID {
		t.Fatalf("events: got=%+v", f.sink.events)
	}
	if len(f.sink.invalidations) != 1 || f.sink.invalidations[0] != d.ID {
		t.Fatalf("invalidations: got=%v", f.sink.invalidations)
	}

	// A failed save fires nothing.
	bad := "not json"
	if _, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{PositionJSON: &bad}); err == nil {
		t.Fatalf("expected failure")
	}
	if len(f.sink.events) != 1 || len(f.sink.invalidations) != 1 {
		t.Fatalf("hooks fired on failed save")
	}
}

func TestDashboardAggregateMetadataOwnersRoles(t *testing.T) {
	f := newAggFixture(t, Config{})
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, f.tx, "owned")
	meta := `{"color_scheme":"d3Category10"}`
	res, err := f.agg.Update(ctx, ctxutil.Anonymous(), d.ID, DashboardUpdate{
		JSONMetadata: &meta,
		Owners:       []int64{7, 8},
		Roles:        []int64{2},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(res.Dashboard.Metadata, &doc); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if doc["color_scheme"] != "d3Category10" {
		t.Fatalf("color_scheme lost: %v", doc)
	}
	owners, ok := doc["owners"].([]any)
	if !ok || len(owners) != 2 {
		t.Fatalf("owners: %v", doc["owners"])
	}
}
