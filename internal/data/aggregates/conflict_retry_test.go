package aggregates_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
	aggtest "github.com/prismbi/prism-backend/internal/data/aggregates/testutil"
	repobi "github.com/prismbi/prism-backend/internal/data/repos/bi"
	repotest "github.com/prismbi/prism-backend/internal/data/repos/testutil"
	repouser "github.com/prismbi/prism-backend/internal/data/repos/user"
	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
)

type retryRig struct {
	runner     *aggtest.InjectedTxRunner
	hooks      *aggtest.HooksRecorder
	agg        *aggregates.DashboardAggregate
	dashboards repobi.DashboardRepo
	dbc        dbctx.Context
}

// newRetryRig builds an aggregate over the fixture transaction with an
// injected runner. The runner hands the body an empty dbctx, so the
// repos fall back to their base handle, which here is the test
// transaction itself.
func newRetryRig(t *testing.T, runner *aggtest.InjectedTxRunner) *retryRig {
	t.Helper()
	gdb := repotest.DB(t)
	tx := repotest.Tx(t, gdb)
	log := repotest.Logger(t)

	dashboards := repobi.NewDashboardRepo(tx, log)
	links := repobi.NewDashboardSliceRepo(tx, log)
	slices := repobi.NewSliceRepo(tx, log)
	versions := repobi.NewVersionStore(tx, log)
	users := repouser.NewUserRepo(tx, log)

	hooks := &aggtest.HooksRecorder{}
	agg := aggregates.NewDashboardAggregate(
		aggregates.Config{LayoutSchemaKey: "v2"},
		runner, dashboards, links, slices, versions, users,
		aggregates.AllowAll(), &aggtest.SinkRecorder{}, log,
	)
	agg.SetHooks(hooks)
	return &retryRig{
		runner:     runner,
		hooks:      hooks,
		agg:        agg,
		dashboards: dashboards,
		dbc:        dbctx.Context{Ctx: context.Background(), Tx: tx},
	}
}

func TestUpdateRetriesOnceAfterCommitConflict(t *testing.T) {
	runner := &aggtest.InjectedTxRunner{
		FailCommitOnce: &pgconn.PgError{Code: "23505"},
	}
	rig := newRetryRig(t, runner)
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, rig.dbc.Tx, "sales")

	title := "Sales Overview"
	res, err := rig.agg.Update(ctx, ctxutil.Anonymous(), d.ID, aggregates.DashboardUpdate{
		DashboardTitle: &title,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Dashboard.DashboardTitle != "Sales Overview" {
		t.Fatalf("title = %q", res.Dashboard.DashboardTitle)
	}

	if runner.BeginCalls != 2 {
		t.Fatalf("BeginCalls = %d, want 2", runner.BeginCalls)
	}
	if runner.CommitCalls != 1 {
		t.Fatalf("CommitCalls = %d, want 1", runner.CommitCalls)
	}
	if runner.RollbackCalls != 1 {
		t.Fatalf("RollbackCalls = %d, want 1", runner.RollbackCalls)
	}
	if len(rig.hooks.Conflicts) != 1 || rig.hooks.Conflicts[0] != "dashboard.update" {
		t.Fatalf("Conflicts = %v", rig.hooks.Conflicts)
	}
	if len(rig.hooks.Retries) != 1 || rig.hooks.Retries[0] != "dashboard.update" {
		t.Fatalf("Retries = %v", rig.hooks.Retries)
	}

	got, err := rig.dashboards.GetByID(rig.dbc, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DashboardTitle != "Sales Overview" {
		t.Fatalf("persisted title = %q", got.DashboardTitle)
	}
}

func TestUpdateSurfacesConflictAfterSecondFailure(t *testing.T) {
	runner := &aggtest.InjectedTxRunner{
		FailCommit: &pgconn.PgError{Code: "23505"},
	}
	rig := newRetryRig(t, runner)
	ctx := context.Background()

	d := repotest.SeedDashboard(t, ctx, rig.dbc.Tx, "sales")

	title := "Sales Overview"
	_, err := rig.agg.Update(ctx, ctxutil.Anonymous(), d.ID, aggregates.DashboardUpdate{
		DashboardTitle: &title,
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if runner.BeginCalls != 2 {
		t.Fatalf("BeginCalls = %d, want 2", runner.BeginCalls)
	}
	if runner.CommitCalls != 0 {
		t.Fatalf("CommitCalls = %d, want 0", runner.CommitCalls)
	}
}
