package aggregates

import (
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
)

func customizationIDs(t *testing.T, meta datatypes.JSON) []int64 {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(meta, &doc); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	entries, _ := doc[chartCustomizationKey].([]any)
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		m, _ := e.(map[string]any)
		id, ok := customizationChartID(m)
		if !ok {
			t.Fatalf("entry without chart_id: %v", m)
		}
		out = append(out, id)
	}
	return out
}

func TestMergeChartCustomizationsReplaceAndAppend(t *testing.T) {
	meta := datatypes.JSON([]byte(`{"chart_customization_config":[{"chart_id":1,"color":"red"},{"chart_id":2,"color":"blue"}]}`))
	merged, err := mergeChartCustomizations(meta, &ChartCustomizationUpdate{
		Updated: []map[string]any{
			{"chart_id": float64(2), "color": "green"},
			{"chart_id": float64(3), "color": "yellow"},
		},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	ids := customizationIDs(t, merged)
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("ids after merge: %v", ids)
	}

	var doc map[string]any
	if err := json.Unmarshal(merged, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entries := doc[chartCustomizationKey].([]any)
	second := entries[1].(map[string]any)
	if second["color"] != "green" {
		t.Fatalf("entry 2 not replaced: %v", second)
	}
}

func TestMergeChartCustomizationsDelete(t *testing.T) {
	meta := datatypes.JSON([]byte(`{"chart_customization_config":[{"chart_id":1},{"chart_id":2},{"chart_id":3}]}`))
	merged, err := mergeChartCustomizations(meta, &ChartCustomizationUpdate{Deleted: []int64{2}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	ids := customizationIDs(t, merged)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("ids after delete: %v", ids)
	}
}

func TestMergeChartCustomizationsReorderKeepsUnmentioned(t *testing.T) {
	meta := datatypes.JSON([]byte(`{"chart_customization_config":[{"chart_id":1},{"chart_id":2},{"chart_id":3},{"chart_id":4}]}`))
	merged, err := mergeChartCustomizations(meta, &ChartCustomizationUpdate{Order: []int64{3, 1}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	ids := customizationIDs(t, merged)
	want := []int64{3, 1, 2, 4}
	if len(ids) != len(want) {
		t.Fatalf("ids after reorder: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order: want=%v got=%v", want, ids)
		}
	}
}

func TestMergeChartCustomizationsFromEmptyMetadata(t *testing.T) {
	merged, err := mergeChartCustomizations(nil, &ChartCustomizationUpdate{
		Updated: []map[string]any{{"chart_id": float64(9), "color": "black"}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	ids := customizationIDs(t, merged)
	if len(ids) != 1 || ids[0] != 9 {
		t.Fatalf("ids: %v", ids)
	}
}

func TestMergeChartCustomizationsRejectsMissingChartID(t *testing.T) {
	_, err := mergeChartCustomizations(nil, &ChartCustomizationUpdate{
		Updated: []map[string]any{{"color": "red"}},
	})
	if err == nil {
		t.Fatalf("expected error for entry without chart_id")
	}
}

func TestMergeChartCustomizationsPreservesOtherMetadata(t *testing.T) {
	meta := datatypes.JSON([]byte(`{"color_scheme":"d3Category10","chart_customization_config":[]}`))
	merged, err := mergeChartCustomizations(meta, &ChartCustomizationUpdate{
		Updated: []map[string]any{{"chart_id": float64(1)}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(merged, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["color_scheme"] != "d3Category10" {
		t.Fatalf("sibling metadata lost: %v", doc)
	}
}
