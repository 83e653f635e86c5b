package bi

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/prismbi/prism-backend/internal/data/repos/testutil"
	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
)

func TestDashboardRepoCRUD(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewDashboardRepo(gdb, testutil.Logger(t))

	slug := "sales-q3"
	d := &types.Dashboard{
		DashboardTitle: "Sales",
		Slug:           &slug,
		PositionJSON:   datatypes.JSON([]byte("{}")),
		Metadata:       datatypes.JSON([]byte("{}")),
	}
	if err := repo.Create(dbc, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == 0 || d.UUID == uuid.Nil {
		t.Fatalf("Create did not assign identity: %+v", d)
	}

	got, err := repo.GetByID(dbc, d.ID)
	if err != nil || got == nil || got.DashboardTitle != "Sales" {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
	byUUID, err := repo.GetByUUID(dbc, d.UUID)
	if err != nil || byUUID == nil || byUUID.ID != d.ID {
		t.Fatalf("GetByUUID: got=%+v err=%v", byUUID, err)
	}

	missing, err := repo.GetByID(dbc, 999999)
	if err != nil || missing != nil {
		t.Fatalf("GetByID missing: got=%+v err=%v", missing, err)
	}

	taken, err := repo.SlugTaken(dbc, "sales-q3", 0)
	if err != nil || !taken {
		t.Fatalf("SlugTaken: taken=%v err=%v", taken, err)
	}
	taken, err = repo.SlugTaken(dbc, "sales-q3", d.ID)
	if err != nil || taken {
		t.Fatalf("SlugTaken excluding self: taken=%v err=%v", taken, err)
	}

	got.DashboardTitle = "Sales 2026"
	if err := repo.Save(dbc, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, _ := repo.GetByID(dbc, d.ID)
	if again.DashboardTitle != "Sales 2026" {
		t.Fatalf("Save not persisted: %+v", again)
	}
}

func TestDashboardRepoDeleteCascades(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewDashboardRepo(gdb, testutil.Logger(t))
	links := NewDashboardSliceRepo(gdb, testutil.Logger(t))
	versions := NewVersionStore(gdb, testutil.Logger(t))

	d := testutil.SeedDashboard(t, ctx, tx, "doomed")
	c := testutil.SeedSlice(t, ctx, tx, "chart")
	if err := links.ReplaceForDashboard(dbc, d.ID, []int64{c.ID}); err != nil {
		t.Fatalf("links: %v", err)
	}
	testutil.SeedVersion(t, ctx, tx, d.ID, 1, "{}", "{}")

	if err := repo.Delete(dbc, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repo.GetByID(dbc, d.ID); got != nil {
		t.Fatal("dashboard survived delete")
	}
	if ids, _ := links.ListSliceIDs(dbc, d.ID); len(ids) != 0 {
		t.Fatalf("link rows survived delete: %v", ids)
	}
	if rows, _ := versions.ListForDashboard(dbc, d.ID); len(rows) != 0 {
		t.Fatalf("version rows survived delete: %d", len(rows))
	}
}
