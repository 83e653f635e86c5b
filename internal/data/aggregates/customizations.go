package aggregates

import (
	"encoding/json"

	"gorm.io/datatypes"
)

const chartCustomizationKey = "chart_customization_config"

// ChartCustomizationUpdate is the per-chart styling delta carried on a
// dashboard save. Entries are keyed by chart_id inside the stored list.
type ChartCustomizationUpdate struct {
	// Updated entries replace the stored entry with the same chart_id,
	// or are appended when none exists.
	Updated []map[string]any `json:"updated"`
	// Deleted removes the stored entries for these chart ids.
	Deleted []int64 `json:"deleted"`
	// Order, when non-empty, moves the listed chart ids to the front in
	// the given order. Entries it does not mention keep their relative
	// order after them.
	Order []int64 `json:"order"`
}

// mergeChartCustomizations folds the delta into the metadata blob's
// chart_customization_config list and returns the re-encoded metadata.
func mergeChartCustomizations(meta datatypes.JSON, upd *ChartCustomizationUpdate) (datatypes.JSON, error) {
	doc := map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &doc); err != nil {
			return nil, ValidationError("json_metadata must be a JSON object")
		}
	}

	entries := customizationEntries(doc[chartCustomizationKey])

	for _, e := range upd.Updated {
		id, ok := customizationChartID(e)
		if !ok {
			return nil, ValidationError("chart customization entry is missing a chart_id")
		}
		replaced := false
		for i, cur := range entries {
			if curID, ok := customizationChartID(cur); ok && curID == id {
				entries[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, e)
		}
	}

	if len(upd.Deleted) > 0 {
		drop := make(map[int64]struct{}, len(upd.Deleted))
		for _, id := range upd.Deleted {
			drop[id] = struct{}{}
		}
		kept := entries[:0]
		for _, e := range entries {
			if id, ok := customizationChartID(e); ok {
				if _, gone := drop[id]; gone {
					continue
				}
			}
			kept = append(kept, e)
		}
		entries = kept
	}

	if len(upd.Order) > 0 {
		entries = reorderCustomizations(entries, upd.Order)
	}

	doc[chartCustomizationKey] = entries
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func customizationEntries(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func customizationChartID(e map[string]any) (int64, bool) {
	switch v := e["chart_id"].(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

func reorderCustomizations(entries []map[string]any, order []int64) []map[string]any {
	byID := make(map[int64]map[string]any, len(entries))
	for _, e := range entries {
		if id, ok := customizationChartID(e); ok {
			byID[id] = e
		}
	}
	placed := make(map[int64]struct{}, len(order))
	out := make([]map[string]any, 0, len(entries))
	for _, id := range order {
		if e, ok := byID[id]; ok {
			if _, dup := placed[id]; dup {
				continue
			}
			out = append(out, e)
			placed[id] = struct{}{}
		}
	}
	for _, e := range entries {
		if id, ok := customizationChartID(e); ok {
			if _, done := placed[id]; done {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
