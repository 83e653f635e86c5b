package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
	repobi "github.com/prismbi/prism-backend/internal/data/repos/bi"
	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/layout"
	"github.com/prismbi/prism-backend/internal/pkg/dbctx"
	"github.com/prismbi/prism-backend/internal/platform/ctxutil"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// Options controls a bundle import.
type Options struct {
	// Overwrite drops the existing link rows of each dashboard before
	// the bundle's links are inserted. When false the existing links
	// are kept and the bundle's pairs are added with duplicates
	// filtered, so the link set is the union of both.
	Overwrite bool
}

// Result reports what an import did.
type Result struct {
	DashboardIDs    []int64
	DeletedChartIDs []int64
}

// FilterBoxMigrator rewrites legacy filter_box charts in a dashboard
// config into native filter metadata. It returns the uuids of charts
// the migration made obsolete; the import deletes them.
type FilterBoxMigrator interface {
	Migrate(dash *DashboardConfig, charts map[uuid.UUID]*ChartConfig) (removed []uuid.UUID, err error)
}

// Importer loads export bundles in a single transaction: databases,
// then datasets, then charts, then dashboards, so every cross
// reference can be resolved by the time it is needed.
type Importer struct {
	tx         aggregates.TxRunner
	dashboards repobi.DashboardRepo
	links      repobi.DashboardSliceRepo
	slices     repobi.SliceRepo
	datasets   repobi.DatasetRepo
	databases  repobi.DatabaseRepo
	versions   repobi.VersionStore
	sink       aggregates.EventSink
	migrator   FilterBoxMigrator
	log        *logger.Logger

	retainVersions int
	schemaKey      string
}

func NewImporter(
	tx aggregates.TxRunner,
	dashboards repobi.DashboardRepo,
	links repobi.DashboardSliceRepo,
	slices repobi.SliceRepo,
	datasets repobi.DatasetRepo,
	databases repobi.DatabaseRepo,
	versions repobi.VersionStore,
	sink aggregates.EventSink,
	migrator FilterBoxMigrator,
	retainVersions int,
	schemaKey string,
	baseLog *logger.Logger,
) *Importer {
	if sink == nil {
		sink = aggregates.NoopSink()
	}
	return &Importer{
		tx:             tx,
		dashboards:     dashboards,
		links:          links,
		slices:         slices,
		datasets:       datasets,
		databases:      databases,
		versions:       versions,
		sink:           sink,
		migrator:       migrator,
		log:            baseLog.With("component", "Importer"),
		retainVersions: retainVersions,
		schemaKey:      schemaKey,
	}
}

const importComment = "imported from bundle"

// Import applies a parsed bundle. All writes happen in one transaction;
// a failing dashboard aborts the whole import.
func (im *Importer) Import(ctx context.Context, actor ctxutil.Actor, b *Bundle, opts Options) (*Result, error) {
	const op = "bundle.import"

	charts := make(map[uuid.UUID]*ChartConfig, len(b.Charts))
	for _, c := range b.Charts {
		charts[c.UUID] = c
	}

	var dropUUIDs []uuid.UUID
	if im.migrator != nil {
		for _, dash := range b.Dashboards {
			removed, err := im.migrator.Migrate(dash, charts)
			if err != nil {
				return nil, aggregates.MapError(op, err)
			}
			dropUUIDs = append(dropUUIDs, removed...)
		}
		for _, id := range dropUUIDs {
			delete(charts, id)
		}
	}

	// Referenced-uuid closure: only entities some dashboard in the
	// bundle actually uses are imported. Computed after the filter-box
	// migration so dropped charts fall out of the closure.
	chartRefs := referencedChartUUIDs(b)
	datasetRefs := referencedDatasetUUIDs(b, charts, chartRefs)
	databaseRefs := referencedDatabaseUUIDs(b, datasetRefs)

	res := &Result{}
	err := im.tx.InTx(ctx, func(dbc dbctx.Context) error {
		res.DashboardIDs = res.DashboardIDs[:0]
		res.DeletedChartIDs = res.DeletedChartIDs[:0]

		dbIDs, err := im.importDatabases(dbc, b, databaseRefs)
		if err != nil {
			return err
		}
		datasetIDs, datasetUsedIDs, err := im.importDatasets(dbc, b, datasetRefs, dbIDs)
		if err != nil {
			return err
		}
		chartIDs, chartUsedIDs, err := im.importCharts(dbc, b, charts, chartRefs, datasetIDs)
		if err != nil {
			return err
		}

		if len(dropUUIDs) > 0 {
			rows, err := im.slices.GetByUUIDs(dbc, dropUUIDs)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(rows))
			for _, s := range rows {
				ids = append(ids, s.ID)
			}
			if err := im.slices.DeleteByIDs(dbc, ids); err != nil {
				return err
			}
			res.DeletedChartIDs = ids
		}

		for _, cfg := range b.Dashboards {
			id, err := im.importDashboard(dbc, actor, cfg, chartIDs, opts)
			if err != nil {
				return err
			}
			res.DashboardIDs = append(res.DashboardIDs, id)
		}

		// A template bundle freezes the entities its dashboards use.
		if b.Metadata.Template {
			if err := im.datasets.SetManagedExternally(dbc, datasetUsedIDs, true); err != nil {
				return err
			}
			if err := im.slices.SetManagedExternally(dbc, chartUsedIDs, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}

	for _, id := range res.DashboardIDs {
		if err := im.sink.Publish(ctx, aggregates.Event{Type: aggregates.EventDashboardImported, DashboardID: id}); err != nil {
			im.log.Warn("import event publish failed", "dashboard_id", id, "error", err)
		}
		if err := im.sink.InvalidateDashboard(ctx, id); err != nil {
			im.log.Warn("import cache invalidation failed", "dashboard_id", id, "error", err)
		}
	}
	return res, nil
}

// referencedChartUUIDs collects the chart uuids any dashboard layout in
// the bundle points at.
func referencedChartUUIDs(b *Bundle) map[uuid.UUID]struct{} {
	refs := map[uuid.UUID]struct{}{}
	for _, dash := range b.Dashboards {
		for _, val := range dash.Position {
			node, ok := val.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := node["type"].(string); t != layout.TypeChart {
				continue
			}
			meta, ok := node["meta"].(map[string]any)
			if !ok {
				continue
			}
			ref, _ := meta["uuid"].(string)
			if id, err := uuid.Parse(ref); err == nil {
				refs[id] = struct{}{}
			}
		}
	}
	return refs
}

// referencedDatasetUUIDs collects the dataset uuids backing the
// referenced charts plus any named by native filter targets.
func referencedDatasetUUIDs(b *Bundle, charts map[uuid.UUID]*ChartConfig, chartRefs map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	refs := map[uuid.UUID]struct{}{}
	for id := range chartRefs {
		if c, ok := charts[id]; ok && c.DatasetUUID != uuid.Nil {
			refs[c.DatasetUUID] = struct{}{}
		}
	}
	for _, dash := range b.Dashboards {
		for _, id := range nativeFilterDatasetUUIDs(dash.Metadata) {
			refs[id] = struct{}{}
		}
	}
	return refs
}

// nativeFilterDatasetUUIDs pulls the datasetUuid targets out of a
// dashboard's native_filter_configuration metadata.
func nativeFilterDatasetUUIDs(meta map[string]any) []uuid.UUID {
	filters, ok := meta["native_filter_configuration"].([]any)
	if !ok {
		return nil
	}
	var out []uuid.UUID
	for _, f := range filters {
		entry, ok := f.(map[string]any)
		if !ok {
			continue
		}
		targets, ok := entry["targets"].([]any)
		if !ok {
			continue
		}
		for _, t := range targets {
			target, ok := t.(map[string]any)
			if !ok {
				continue
			}
			ref, _ := target["datasetUuid"].(string)
			if id, err := uuid.Parse(ref); err == nil {
				out = append(out, id)
			}
		}
	}
	return out
}

func referencedDatabaseUUIDs(b *Bundle, datasetRefs map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	refs := map[uuid.UUID]struct{}{}
	for _, ds := range b.Datasets {
		if _, used := datasetRefs[ds.UUID]; used && ds.DatabaseUUID != uuid.Nil {
			refs[ds.DatabaseUUID] = struct{}{}
		}
	}
	return refs
}

func (im *Importer) importDatabases(dbc dbctx.Context, b *Bundle, dbRefs map[uuid.UUID]struct{}) (map[uuid.UUID]int64, error) {
	for _, cfg := range b.Databases {
		if _, used := dbRefs[cfg.UUID]; !used {
			continue
		}
		row := &types.Database{
			UUID:          cfg.UUID,
			DatabaseName:  cfg.DatabaseName,
			SQLAlchemyURI: cfg.SQLAlchemyURI,
		}
		if err := im.databases.UpsertByUUID(dbc, row); err != nil {
			return nil, err
		}
	}
	refs := make([]uuid.UUID, 0, len(dbRefs))
	for id := range dbRefs {
		refs = append(refs, id)
	}
	rows, err := im.databases.GetByUUIDs(dbc, refs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.UUID] = row.ID
	}
	return out, nil
}

func (im *Importer) importDatasets(dbc dbctx.Context, b *Bundle, dsRefs map[uuid.UUID]struct{}, dbIDs map[uuid.UUID]int64) (map[uuid.UUID]int64, []int64, error) {
	for _, cfg := range b.Datasets {
		if _, used := dsRefs[cfg.UUID]; !used {
			continue
		}
		dbID, ok := dbIDs[cfg.DatabaseUUID]
		if !ok {
			return nil, nil, aggregates.ValidationError(
				fmt.Sprintf("dataset %s references unknown database %s", cfg.UUID, cfg.DatabaseUUID))
		}
		row := &types.Dataset{
			UUID:       cfg.UUID,
			TableName_: cfg.TableName,
			Schema:     cfg.Schema,
		}
		row.DatabaseID = &dbID
		if err := im.datasets.UpsertByUUID(dbc, row); err != nil {
			return nil, nil, err
		}
	}

	refs := make([]uuid.UUID, 0, len(dsRefs))
	for id := range dsRefs {
		refs = append(refs, id)
	}
	rows, err := im.datasets.GetByUUIDs(dbc, refs)
	if err != nil {
		return nil, nil, err
	}
	byUUID := make(map[uuid.UUID]int64, len(rows))
	usedIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		byUUID[row.UUID] = row.ID
		usedIDs = append(usedIDs, row.ID)
	}
	return byUUID, usedIDs, nil
}

func (im *Importer) importCharts(dbc dbctx.Context, b *Bundle, charts map[uuid.UUID]*ChartConfig, chartRefs map[uuid.UUID]struct{}, datasetIDs map[uuid.UUID]int64) (map[uuid.UUID]int64, []int64, error) {
	ordered := make([]*ChartConfig, 0, len(charts))
	for _, cfg := range b.Charts {
		if _, kept := charts[cfg.UUID]; !kept {
			continue
		}
		if _, used := chartRefs[cfg.UUID]; used {
			ordered = append(ordered, cfg)
		}
	}
	for _, cfg := range ordered {
		row := &types.Slice{
			UUID:      cfg.UUID,
			SliceName: cfg.SliceName,
			VizType:   cfg.VizType,
		}
		if cfg.DatasetUUID != uuid.Nil {
			dsID, ok := datasetIDs[cfg.DatasetUUID]
			if !ok {
				return nil, nil, aggregates.ValidationError(
					fmt.Sprintf("chart %s references unknown dataset %s", cfg.UUID, cfg.DatasetUUID))
			}
			row.DatasetID = &dsID
		}
		if cfg.Params != nil {
			raw, err := json.Marshal(cfg.Params)
			if err != nil {
				return nil, nil, err
			}
			row.Params = datatypes.JSON(raw)
		}
		if err := im.slices.UpsertByUUID(dbc, row); err != nil {
			return nil, nil, err
		}
	}

	// Resolve over the full closure so a layout may reference charts
	// that already exist outside the bundle.
	refs := make([]uuid.UUID, 0, len(chartRefs))
	for id := range chartRefs {
		refs = append(refs, id)
	}
	rows, err := im.slices.GetByUUIDs(dbc, refs)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		out[row.UUID] = row.ID
		ids = append(ids, row.ID)
	}
	return out, ids, nil
}

func (im *Importer) importDashboard(dbc dbctx.Context, actor ctxutil.Actor, cfg *DashboardConfig, chartIDs map[uuid.UUID]int64, opts Options) (int64, error) {
	existing, err := im.dashboards.GetByUUID(dbc, cfg.UUID)
	if err != nil {
		return 0, err
	}

	position, linked, err := im.rewriteLayout(cfg, chartIDs)
	if err != nil {
		return 0, err
	}

	metaRaw := []byte("{}")
	if cfg.Metadata != nil {
		metaRaw, err = json.Marshal(cfg.Metadata)
		if err != nil {
			return 0, err
		}
	}

	d := existing
	if d == nil {
		d = &types.Dashboard{UUID: cfg.UUID}
	}
	d.DashboardTitle = cfg.DashboardTitle
	d.Slug = cfg.Slug
	d.Description = cfg.Description
	d.CSS = cfg.CSS
	d.PositionJSON = position
	d.Metadata = datatypes.JSON(metaRaw)

	if existing == nil {
		if err := im.dashboards.Create(dbc, d); err != nil {
			return 0, err
		}
	} else {
		if err := im.dashboards.Save(dbc, d); err != nil {
			return 0, err
		}
	}

	// Overwrite drops the previous link set; otherwise the bundle's
	// pairs are added on top of whatever the dashboard already links,
	// skipping pairs that are already present.
	if opts.Overwrite {
		if err := im.links.ReplaceForDashboard(dbc, d.ID, linked); err != nil {
			return 0, err
		}
	} else {
		rows := make([]types.DashboardSlice, 0, len(linked))
		for _, sliceID := range linked {
			rows = append(rows, types.DashboardSlice{DashboardID: d.ID, SliceID: sliceID})
		}
		if err := im.links.InsertMissing(dbc, rows); err != nil {
			return 0, err
		}
	}

	n, err := im.versions.NextVersionNumber(dbc, d.ID)
	if err != nil {
		return 0, err
	}
	comment := importComment
	v := &types.DashboardVersion{
		DashboardID:   d.ID,
		VersionNumber: n,
		PositionJSON:  d.PositionJSON,
		MetadataJSON:  d.Metadata,
		Comment:       &comment,
	}
	if actor.UserID > 0 {
		uid := actor.UserID
		v.CreatedBy = &uid
	}
	if err := im.versions.Create(dbc, v); err != nil {
		return 0, err
	}
	if err := im.versions.Trim(dbc, d.ID, im.retainVersions); err != nil {
		return 0, err
	}
	return d.ID, nil
}

// rewriteLayout swaps the export's uuid chart references for database
// ids and returns the canonical layout document plus the linked ids.
func (im *Importer) rewriteLayout(cfg *DashboardConfig, chartIDs map[uuid.UUID]int64) (datatypes.JSON, []int64, error) {
	if len(cfg.Position) == 0 {
		return datatypes.JSON([]byte("{}")), nil, nil
	}

	position := make(map[string]any, len(cfg.Position))
	for k, v := range cfg.Position {
		position[k] = v
	}
	for key, val := range position {
		node, ok := val.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := node["type"].(string); t != layout.TypeChart {
			continue
		}
		meta, ok := node["meta"].(map[string]any)
		if !ok {
			return nil, nil, aggregates.ValidationError(
				fmt.Sprintf("dashboard %s: chart node %s has no meta", cfg.UUID, key))
		}
		ref, _ := meta["uuid"].(string)
		chartUUID, err := uuid.Parse(ref)
		if err != nil {
			return nil, nil, aggregates.ValidationError(
				fmt.Sprintf("dashboard %s: chart node %s has no usable uuid", cfg.UUID, key))
		}
		id, ok := chartIDs[chartUUID]
		if !ok {
			return nil, nil, aggregates.ValidationError(
				fmt.Sprintf("dashboard %s references chart %s not present in the bundle", cfg.UUID, chartUUID))
		}
		meta["chartId"] = id
		delete(meta, "uuid")
	}

	raw, err := json.Marshal(position)
	if err != nil {
		return nil, nil, err
	}
	tree := layout.Parse(raw)
	if tree == nil {
		return nil, nil, aggregates.InvalidLayoutError(
			fmt.Sprintf("dashboard %s: position does not parse as a layout tree", cfg.UUID))
	}
	if !tree.HasRootSkeleton() {
		return nil, nil, aggregates.InvalidLayoutError(
			fmt.Sprintf("dashboard %s: position is missing the ROOT_ID/GRID_ID skeleton", cfg.UUID))
	}
	if tree.SchemaKey == "" {
		tree.SchemaKey = im.schemaKey
	}
	return datatypes.JSON(tree.Serialize()), tree.ChartIDs(), nil
}
