package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	repobi "github.com/prismbi/prism-backend/internal/data/repos/bi"
	types "github.com/prismbi/prism-backend/internal/domain"
	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
	"github.com/prismbi/prism-backend/internal/layout"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// Config carries the pipeline-wide knobs.
type Config struct {
	// RetainVersions is the per-dashboard keep limit applied after every
	// snapshot. 0 means unlimited retention.
	RetainVersions int
	// LayoutSchemaKey is written to DASHBOARD_VERSION_KEY when a saved
	// layout does not carry one.
	LayoutSchemaKey string
}

// Authorizer is the delegated write-permission check. The pipelines
// assume a pre-authorized caller; save and restore re-check because
// they mutate shared state.
type Authorizer interface {
	CanWriteDashboard(ctx context.Context, actor ctxutil.Actor, d *types.Dashboard) error
}

type allowAll struct{}

func (allowAll) CanWriteDashboard(context.Context, ctxutil.Actor, *types.Dashboard) error {
	return nil
}

// AllowAll authorizes every write; the surrounding product wires its own
// role checks in front of the pipelines.
func AllowAll() Authorizer { return allowAll{} }

// DashboardUpdate is the partial update map accepted by the save
// pipeline. Nil pointers mean "field not provided".
type DashboardUpdate struct {
	DashboardTitle       *string                   `json:"dashboard_title"`
	Slug                 *string                   `json:"slug"`
	Description          *string                   `json:"description"`
	CSS                  *string                   `json:"css"`
	PositionJSON         *string                   `json:"position_json"`
	JSONMetadata         *string                   `json:"json_metadata"`
	Owners               []int64                   `json:"owners"`
	Roles                []int64                   `json:"roles"`
	Published            *bool                     `json:"published"`
	CertifiedBy          *string                   `json:"certified_by"`
	CertificationDetails *string                   `json:"certification_details"`
	Tags                 []string                  `json:"tags"`
	ChartCustomizations  *ChartCustomizationUpdate `json:"chart_customizations"`
	VersionDescription   *string                   `json:"version_description"`
}

// UpdateResult is what a successful save or restore hands back.
type UpdateResult struct {
	Dashboard *types.Dashboard
	Version   *types.DashboardVersion
	// LinkedSliceIDs is the chart set the link table holds after the
	// operation.
	LinkedSliceIDs []int64
}

// DashboardAggregate owns the save and restore pipelines. Each call is
// one transaction; the version log is written from the post-state so it
// never records a state the dashboard did not hold.
type DashboardAggregate struct {
	cfg        Config
	tx         TxRunner
	dashboards repobi.DashboardRepo
	links      repobi.DashboardSliceRepo
	slices     repobi.SliceRepo
	versions   repobi.VersionStore
	users      userRepo
	auth       Authorizer
	sink       EventSink
	hooks      Hooks
	log        *logger.Logger
}

type userRepo interface {
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.User, error)
}

func NewDashboardAggregate(
	cfg Config,
	tx TxRunner,
	dashboards repobi.DashboardRepo,
	links repobi.DashboardSliceRepo,
	slices repobi.SliceRepo,
	versions repobi.VersionStore,
	users userRepo,
	auth Authorizer,
	sink EventSink,
	baseLog *logger.Logger,
) *DashboardAggregate {
	if auth == nil {
		auth = AllowAll()
	}
	if sink == nil {
		sink = NoopSink()
	}
	return &DashboardAggregate{
		cfg:        cfg,
		tx:         tx,
		dashboards: dashboards,
		links:      links,
		slices:     slices,
		versions:   versions,
		users:      users,
		auth:       auth,
		sink:       sink,
		hooks:      noopHooks{},
		log:        baseLog.With("aggregate", "DashboardAggregate"),
	}
}

// SetHooks installs a telemetry receiver. Nil restores the no-op.
func (a *DashboardAggregate) SetHooks(h Hooks) {
	if h == nil {
		h = noopHooks{}
	}
	a.hooks = h
}

// Update applies a partial update map to a dashboard, keeps the link
// table in sync with the layout, and snapshots the post-state.
func (a *DashboardAggregate) Update(ctx context.Context, actor ctxutil.Actor, dashboardID int64, upd DashboardUpdate) (*UpdateResult, error) {
	var out *UpdateResult
	var hooks []PostCommitHook

	err := a.withConflictRetry(ctx, "dashboard.update", func(dbc dbctx.Context) error {
		hooks = hooks[:0]

		d, err := a.dashboards.GetByID(dbc, dashboardID)
		if err != nil {
			return err
		}
		if d == nil {
			return domainagg.NewError(domainagg.CodeNotFound, "dashboard.update",
				fmt.Sprintf("dashboard %d not found", dashboardID), nil)
		}
		if err := a.auth.CanWriteDashboard(dbc.Ctx, actor, d); err != nil {
			return domainagg.Wrap(domainagg.CodeForbidden, "dashboard.update", err)
		}

		if err := a.applyFields(dbc, d, &upd); err != nil {
			return err
		}

		var linked []int64
		if upd.PositionJSON != nil {
			tree, empty, err := a.normalizeLayout(*upd.PositionJSON)
			if err != nil {
				return err
			}
			if empty {
				if err := a.links.ReplaceForDashboard(dbc, d.ID, nil); err != nil {
					return err
				}
				d.PositionJSON = datatypes.JSON([]byte("{}"))
			} else {
				linked, err = a.syncFromLayout(dbc, d, tree)
				if err != nil {
					return err
				}
				d.PositionJSON = datatypes.JSON(tree.Serialize())
			}
		} else {
			linked, err = a.links.ListSliceIDs(dbc, d.ID)
			if err != nil {
				return err
			}
		}

		if upd.ChartCustomizations != nil {
			merged, err := mergeChartCustomizations(d.Metadata, upd.ChartCustomizations)
			if err != nil {
				return err
			}
			d.Metadata = merged
		}

		if err := a.dashboards.Save(dbc, d); err != nil {
			return err
		}

		v, err := a.snapshot(dbc, d, actor, upd.VersionDescription)
		if err != nil {
			return err
		}

		hooks = append(hooks,
			publishHook(a.sink, a.log, Event{Type: EventDashboardUpdated, DashboardID: d.ID, VersionNumber: v.VersionNumber}),
			invalidateHook(a.sink, a.log, d.ID),
		)
		out = &UpdateResult{Dashboard: d, Version: v, LinkedSliceIDs: linked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	runHooks(ctx, hooks)
	return out, nil
}

// applyFields copies provided scalar fields onto the dashboard and
// validates metadata and slug.
func (a *DashboardAggregate) applyFields(dbc dbctx.Context, d *types.Dashboard, upd *DashboardUpdate) error {
	if upd.DashboardTitle != nil {
		d.DashboardTitle = *upd.DashboardTitle
	}
	if upd.Slug != nil {
		slug := strings.TrimSpace(*upd.Slug)
		if slug == "" {
			d.Slug = nil
		} else {
			taken, err := a.dashboards.SlugTaken(dbc, slug, d.ID)
			if err != nil {
				return err
			}
			if taken {
				return domainagg.NewError(domainagg.CodeValidation, "dashboard.update",
					fmt.Sprintf("slug %q is already in use", slug), nil)
			}
			d.Slug = &slug
		}
	}
	if upd.Description != nil {
		d.Description = *upd.Description
	}
	if upd.CSS != nil {
		d.CSS = *upd.CSS
	}
	if upd.Published != nil {
		d.Published = *upd.Published
	}
	if upd.CertifiedBy != nil {
		d.CertifiedBy = *upd.CertifiedBy
	}
	if upd.CertificationDetails != nil {
		d.CertificationDetails = *upd.CertificationDetails
	}
	if upd.Tags != nil {
		raw, err := json.Marshal(upd.Tags)
		if err != nil {
			return err
		}
		d.CustomTags = datatypes.JSON(raw)
	}

	if upd.JSONMetadata != nil {
		meta, err := normalizeMetadata(*upd.JSONMetadata)
		if err != nil {
			return err
		}
		d.Metadata = meta
	}

	if upd.Owners != nil || upd.Roles != nil {
		meta := map[string]any{}
		if len(d.Metadata) > 0 {
			if err := json.Unmarshal(d.Metadata, &meta); err != nil {
				meta = map[string]any{}
			}
		}
		if upd.Owners != nil {
			meta["owners"] = upd.Owners
		}
		if upd.Roles != nil {
			meta["roles"] = upd.Roles
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		d.Metadata = datatypes.JSON(raw)
	}
	return nil
}

// normalizeLayout decides between "no layout" and "layout document". An
// empty document clears the layout; a malformed one is rejected.
func (a *DashboardAggregate) normalizeLayout(raw string) (*layout.Tree, bool, error) {
	doc := strings.TrimSpace(raw)
	if doc == "" || doc == "null" || doc == "{}" {
		return nil, true, nil
	}
	tree := layout.Parse([]byte(doc))
	if tree == nil {
		return nil, false, InvalidLayoutError("position_json does not parse as a layout tree")
	}
	if !tree.HasRootSkeleton() {
		return nil, false, InvalidLayoutError("position_json is missing the ROOT_ID/GRID_ID skeleton")
	}
	if tree.SchemaKey == "" {
		tree.SchemaKey = a.cfg.LayoutSchemaKey
	}
	return tree, false, nil
}

func normalizeMetadata(raw string) (datatypes.JSON, error) {
	doc := strings.TrimSpace(raw)
	if doc == "" || doc == "null" {
		return datatypes.JSON([]byte("{}")), nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(doc), &meta); err != nil {
		return nil, ValidationError("json_metadata must be a JSON object")
	}
	canonical, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(canonical), nil
}

// withConflictRetry runs fn in a transaction and retries exactly once
// when the failure maps to a conflict (the version-number unique index
// tripping under concurrent saves). The second failure is surfaced.
func (a *DashboardAggregate) withConflictRetry(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	err := a.tx.InTx(ctx, fn)
	if err == nil {
		a.hooks.ObserveOperation(op, "ok", time.Since(start))
		return nil
	}
	mapped := MapError(op, err)
	if !domainagg.IsCode(mapped, domainagg.CodeConflict) {
		a.hooks.ObserveOperation(op, "error", time.Since(start))
		return mapped
	}
	a.hooks.IncConflict(op)
	a.hooks.IncRetry(op)
	a.log.Warn("pipeline conflict, retrying once", "op", op, "error", err)
	if err := a.tx.InTx(ctx, fn); err != nil {
		a.hooks.ObserveOperation(op, "error", time.Since(start))
		return MapError(op, err)
	}
	a.hooks.ObserveOperation(op, "ok", time.Since(start))
	return nil
}

func cloneJSON(src datatypes.JSON) datatypes.JSON {
	if len(src) == 0 {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return datatypes.JSON(dst)
}
