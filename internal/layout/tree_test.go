package layout

import (
	"bytes"
	"testing"
)

const sampleDoc = `{
  "DASHBOARD_VERSION_KEY": "v2",
  "ROOT_ID": {"id": "ROOT_ID", "type": "ROOT", "children": ["GRID_ID"]},
  "GRID_ID": {"id": "GRID_ID", "type": "GRID", "children": ["ROW-1"]},
  "ROW-1": {"id": "ROW-1", "type": "ROW", "children": ["CHART-a", "MARKDOWN-1"], "meta": {"background": "BACKGROUND_TRANSPARENT"}},
  "CHART-a": {"id": "CHART-a", "type": "CHART", "children": [], "meta": {"chartId": 42, "uuid": "3c4f...", "sliceName": "Trend", "width": 4, "height": 50}},
  "MARKDOWN-1": {"id": "MARKDOWN-1", "type": "MARKDOWN", "children": [], "meta": {"code": "# hi"}}
}`

func TestParseRejectsEmptyAndMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"whitespace":  "   ",
		"null":        "null",
		"emptyObject": "{}",
		"malformed":   `{"ROOT_ID": {`,
		"scalar":      `"position"`,
		"array":       `[1,2,3]`,
	}
	for name, doc := range cases {
		if tree := Parse([]byte(doc)); tree != nil {
			t.Fatalf("Parse(%s) = %v, want nil", name, tree)
		}
	}
}

func TestParseBuildsTree(t *testing.T) {
	tree := Parse([]byte(sampleDoc))
	if tree == nil {
		t.Fatal("Parse returned nil for valid document")
	}
	if tree.SchemaKey != "v2" {
		t.Fatalf("SchemaKey = %q, want v2", tree.SchemaKey)
	}
	if tree.Len() != 5 {
		t.Fatalf("Len = %d, want 5 (sentinel is not a component)", tree.Len())
	}
	if !tree.HasRootSkeleton() {
		t.Fatal("expected ROOT_ID -> GRID_ID skeleton")
	}
	row := tree.Get("ROW-1")
	if row == nil || row.Type != TypeRow {
		t.Fatalf("ROW-1 = %+v", row)
	}
	if got := row.Meta["background"]; got != "BACKGROUND_TRANSPARENT" {
		t.Fatalf("row meta = %v", got)
	}
}

func TestParseDerivesParents(t *testing.T) {
	tree := Parse([]byte(sampleDoc))
	if tree == nil {
		t.Fatal("Parse returned nil")
	}
	want := map[string][]string{
		"ROOT_ID":    nil,
		"GRID_ID":    {"ROOT_ID"},
		"ROW-1":      {"ROOT_ID", "GRID_ID"},
		"CHART-a":    {"ROOT_ID", "GRID_ID", "ROW-1"},
		"MARKDOWN-1": {"ROOT_ID", "GRID_ID", "ROW-1"},
	}
	for id, chain := range want {
		got := tree.Parents(id)
		if len(got) != len(chain) {
			t.Fatalf("Parents(%s) = %v, want %v", id, got, chain)
		}
		for i := range chain {
			if got[i] != chain[i] {
				t.Fatalf("Parents(%s) = %v, want %v", id, got, chain)
			}
		}
	}
}

func TestParseIgnoresStoredParents(t *testing.T) {
	doc := `{
	  "ROOT_ID": {"id": "ROOT_ID", "type": "ROOT", "children": ["GRID_ID"]},
	  "GRID_ID": {"id": "GRID_ID", "type": "GRID", "children": [], "parents": ["BOGUS"]}
	}`
	tree := Parse([]byte(doc))
	if tree == nil {
		t.Fatal("Parse returned nil")
	}
	got := tree.Parents("GRID_ID")
	if len(got) != 1 || got[0] != RootID {
		t.Fatalf("Parents(GRID_ID) = %v, want [ROOT_ID]", got)
	}
}

func TestSerializeIsCanonical(t *testing.T) {
	tree := Parse([]byte(sampleDoc))
	if tree == nil {
		t.Fatal("Parse returned nil")
	}
	first := tree.Serialize()
	second := tree.Serialize()
	if !bytes.Equal(first, second) {
		t.Fatal("Serialize not deterministic")
	}
	if bytes.ContainsAny(first, "\n\t ") {
		// Meta strings may contain spaces; check structure keys only by
		// asserting no newlines or tabs.
		if bytes.ContainsRune(first, '\n') || bytes.ContainsRune(first, '\t') {
			t.Fatalf("Serialize output has whitespace: %q", first)
		}
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	tree := Parse([]byte(sampleDoc))
	if tree == nil {
		t.Fatal("Parse returned nil")
	}
	raw := tree.Serialize()
	again := Parse(raw)
	if again == nil {
		t.Fatal("Parse(Serialize(tree)) returned nil")
	}
	if !bytes.Equal(raw, again.Serialize()) {
		t.Fatalf("round trip changed document:\n%s\n%s", raw, again.Serialize())
	}
	if again.SchemaKey != tree.SchemaKey || again.Len() != tree.Len() {
		t.Fatalf("round trip changed shape: %q/%d vs %q/%d",
			again.SchemaKey, again.Len(), tree.SchemaKey, tree.Len())
	}
}

func TestSerializeOmitsParents(t *testing.T) {
	tree := Parse([]byte(sampleDoc))
	raw := tree.Serialize()
	if bytes.Contains(raw, []byte(`"parents"`)) {
		t.Fatalf("Serialize stored parents: %s", raw)
	}
}

func TestPutRederivesParents(t *testing.T) {
	tree := New("v2")
	tree.Put(&Component{ID: RootID, Type: TypeRoot, Children: []string{GridID}})
	tree.Put(&Component{ID: GridID, Type: TypeGrid, Children: []string{"CHART-x"}})
	tree.Put(&Component{ID: "CHART-x", Type: TypeChart, Meta: map[string]any{"chartId": float64(7)}})

	got := tree.Parents("CHART-x")
	if len(got) != 2 || got[0] != RootID || got[1] != GridID {
		t.Fatalf("Parents(CHART-x) = %v", got)
	}
}
