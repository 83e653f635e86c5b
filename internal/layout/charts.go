package layout

import (
	"encoding/json"
	"math"
	"sort"
)

// ChartRef pairs a CHART component with the id it is stored under.
type ChartRef struct {
	ComponentID string
	Component   *Component
}

// ChartComponents returns every CHART component in component-id order.
func (t *Tree) ChartComponents() []ChartRef {
	if t == nil {
		return nil
	}
	var refs []ChartRef
	for _, id := range t.IDs() {
		c := t.nodes[id]
		if c.Type == TypeChart {
			refs = append(refs, ChartRef{ComponentID: id, Component: c})
		}
	}
	return refs
}

// ChartIDs collects meta.chartId for every CHART component, sorted.
// CHART components whose chartId is missing or not an integer are
// ignored.
func (t *Tree) ChartIDs() []int64 {
	if t == nil {
		return nil
	}
	set := map[int64]struct{}{}
	for _, ref := range t.ChartComponents() {
		if id, ok := ChartIDOf(ref.Component); ok {
			set[id] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ChartIDOf extracts meta.chartId from a component when it is an integer.
func ChartIDOf(c *Component) (int64, bool) {
	if c == nil || c.Meta == nil {
		return 0, false
	}
	switch v := c.Meta["chartId"].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// PruneOrphanCharts removes every CHART component whose chartId is not in
// valid (or is missing), and detaches it from its immediate parent's
// children. Containers left empty are kept: the UI tolerates empty rows
// and columns, and dropping them would break ancestor chains.
func (t *Tree) PruneOrphanCharts(valid map[int64]struct{}) {
	if t == nil {
		return
	}
	var orphaned []string
	for _, ref := range t.ChartComponents() {
		id, ok := ChartIDOf(ref.Component)
		if ok {
			if _, live := valid[id]; live {
				continue
			}
		}
		orphaned = append(orphaned, ref.ComponentID)
	}
	if len(orphaned) == 0 {
		return
	}
	dead := map[string]bool{}
	for _, id := range orphaned {
		dead[id] = true
		delete(t.nodes, id)
	}
	for _, node := range t.nodes {
		if len(node.Children) == 0 {
			continue
		}
		kept := node.Children[:0]
		for _, child := range node.Children {
			if !dead[child] {
				kept = append(kept, child)
			}
		}
		node.Children = kept
	}
	t.rebuildParents()
}

// ValidSet is a convenience for building PruneOrphanCharts input.
func ValidSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
