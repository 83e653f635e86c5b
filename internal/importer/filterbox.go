package importer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/prismbi/prism-backend/internal/layout"
)

// NativeFilterMigrator converts legacy filter_box charts into native
// filter metadata during import. The filter_box viz type is gone from
// the chart gallery; bundles exported from old deployments still carry
// them.
type NativeFilterMigrator struct{}

var _ FilterBoxMigrator = NativeFilterMigrator{}

func (NativeFilterMigrator) Migrate(dash *DashboardConfig, charts map[uuid.UUID]*ChartConfig) ([]uuid.UUID, error) {
	if len(dash.Position) == 0 {
		return nil, nil
	}

	var removed []uuid.UUID
	var filters []any
	var dropKeys []string

	for key, val := range dash.Position {
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
		chartUUID, err := uuid.Parse(ref)
		if err != nil {
			continue
		}
		cfg, ok := charts[chartUUID]
		if !ok || cfg.VizType != "filter_box" {
			continue
		}

		filters = append(filters, nativeFilterEntry(cfg))
		removed = append(removed, chartUUID)
		dropKeys = append(dropKeys, key)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	for _, key := range dropKeys {
		delete(dash.Position, key)
	}
	detachChildren(dash.Position, dropKeys)

	if dash.Metadata == nil {
		dash.Metadata = map[string]any{}
	}
	existing, _ := dash.Metadata["native_filter_configuration"].([]any)
	dash.Metadata["native_filter_configuration"] = append(existing, filters...)

	return removed, nil
}

// nativeFilterEntry maps one filter_box chart onto a native select
// filter. Only the pieces the dashboard renderer needs survive; the
// rest of the old params are intentionally dropped.
func nativeFilterEntry(cfg *ChartConfig) map[string]any {
	entry := map[string]any{
		"id":         fmt.Sprintf("NATIVE_FILTER-%s", cfg.UUID),
		"name":       cfg.SliceName,
		"filterType": "filter_select",
		"scope": map[string]any{
			"rootPath": []string{layout.RootID},
			"excluded": []any{},
		},
	}
	if cfg.Params == nil {
		return entry
	}
	var targets []any
	if cols, ok := cfg.Params["groupby"].([]any); ok {
		for _, col := range cols {
			name, ok := col.(string)
			if !ok {
				continue
			}
			targets = append(targets, map[string]any{
				"column":      map[string]any{"name": name},
				"datasetUuid": cfg.DatasetUUID.String(),
			})
		}
	}
	if len(targets) > 0 {
		entry["targets"] = targets
	}
	return entry
}

func detachChildren(position map[string]any, dropKeys []string) {
	drop := make(map[string]struct{}, len(dropKeys))
	for _, key := range dropKeys {
		drop[key] = struct{}{}
	}
	for _, val := range position {
		node, ok := val.(map[string]any)
		if !ok {
			continue
		}
		children, ok := node["children"].([]any)
		if !ok {
			continue
		}
		kept := make([]any, 0, len(children))
		for _, child := range children {
			if id, ok := child.(string); ok {
				if _, gone := drop[id]; gone {
					continue
				}
			}
			kept = append(kept, child)
		}
		node["children"] = kept
	}
}
