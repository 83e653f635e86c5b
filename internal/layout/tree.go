package layout

import (
	"encoding/json"
	"sort"
	"strings"
)

// Well-known component ids and the sentinel key carrying the layout schema
// tag. The sentinel is part of the serialized document but is not a
// component.
const (
	RootID     = "ROOT_ID"
	GridID     = "GRID_ID"
	VersionKey = "DASHBOARD_VERSION_KEY"
)

const (
	TypeRoot     = "ROOT"
	TypeGrid     = "GRID"
	TypeHeader   = "HEADER"
	TypeRow      = "ROW"
	TypeColumn   = "COLUMN"
	TypeTab      = "TAB"
	TypeTabs     = "TABS"
	TypeMarkdown = "MARKDOWN"
	TypeChart    = "CHART"
)

// Component is one node of the dashboard position tree. Only the downward
// direction (Children) is stored; ancestor chains are derived on parse so
// the two directions can never disagree on disk.
type Component struct {
	ID       string
	Type     string
	Children []string
	Meta     map[string]any
}

// Tree is the decoded form of a dashboard's position_json: a mapping from
// component id to component, plus the schema tag.
type Tree struct {
	SchemaKey string

	nodes   map[string]*Component
	parents map[string][]string
}

// New returns an empty tree carrying the given schema tag.
func New(schemaKey string) *Tree {
	return &Tree{
		SchemaKey: schemaKey,
		nodes:     map[string]*Component{},
		parents:   map[string][]string{},
	}
}

// Parse decodes position_json. It returns nil for NULL, empty, "{}" or
// malformed input; callers treat nil as "no layout to analyze". It never
// panics on malformed JSON. Stored parents entries in the input are
// ignored; ancestor chains are re-derived from Children.
func Parse(raw []byte) *Tree {
	doc := strings.TrimSpace(string(raw))
	if doc == "" || doc == "null" || doc == "{}" {
		return nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &top); err != nil {
		return nil
	}
	if len(top) == 0 {
		return nil
	}
	t := New("")
	for key, val := range top {
		if key == VersionKey {
			var tag string
			if err := json.Unmarshal(val, &tag); err == nil {
				t.SchemaKey = tag
			}
			continue
		}
		var node map[string]any
		if err := json.Unmarshal(val, &node); err != nil {
			continue
		}
		c := &Component{ID: key}
		if id, ok := node["id"].(string); ok && id != "" {
			c.ID = id
		}
		if typ, ok := node["type"].(string); ok {
			c.Type = typ
		}
		if kids, ok := node["children"].([]any); ok {
			for _, k := range kids {
				if s, ok := k.(string); ok {
					c.Children = append(c.Children, s)
				}
			}
		}
		if meta, ok := node["meta"].(map[string]any); ok {
			c.Meta = meta
		}
		t.nodes[key] = c
	}
	if len(t.nodes) == 0 {
		return nil
	}
	t.rebuildParents()
	return t
}

// Serialize encodes the tree as canonical JSON: sorted keys, no
// whitespace, parents omitted. Re-serializing an unmodified tree yields
// byte-identical output.
func (t *Tree) Serialize() []byte {
	if t == nil {
		return nil
	}
	out := make(map[string]any, len(t.nodes)+1)
	if t.SchemaKey != "" {
		out[VersionKey] = t.SchemaKey
	}
	for key, c := range t.nodes {
		node := map[string]any{
			"id":       c.ID,
			"type":     c.Type,
			"children": childrenOrEmpty(c.Children),
		}
		if len(c.Meta) > 0 {
			node["meta"] = c.Meta
		}
		out[key] = node
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil
	}
	return raw
}

func childrenOrEmpty(children []string) []string {
	if children == nil {
		return []string{}
	}
	return children
}

// Get returns the component stored under id, or nil.
func (t *Tree) Get(id string) *Component {
	if t == nil {
		return nil
	}
	return t.nodes[id]
}

// Len reports the number of components (the sentinel does not count).
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// IDs returns all component ids in sorted order.
func (t *Tree) IDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Put inserts or replaces a component under its id and re-derives
// ancestor chains.
func (t *Tree) Put(c *Component) {
	if t == nil || c == nil || c.ID == "" {
		return
	}
	t.nodes[c.ID] = c
	t.rebuildParents()
}

// Parents returns the full ancestor chain of id from root downward,
// ending at the immediate parent. The root itself has no parents.
func (t *Tree) Parents(id string) []string {
	if t == nil {
		return nil
	}
	return t.parents[id]
}

// HasRootSkeleton reports whether the tree carries the ROOT_ID -> GRID_ID
// skeleton every non-empty layout must include.
func (t *Tree) HasRootSkeleton() bool {
	root := t.Get(RootID)
	if root == nil || t.Get(GridID) == nil {
		return false
	}
	for _, child := range root.Children {
		if child == GridID {
			return true
		}
	}
	return false
}

// rebuildParents walks the tree from ROOT_ID and records, for each
// reachable component, its ancestor ids from root down. Components not
// reachable from the root keep an empty chain.
func (t *Tree) rebuildParents() {
	t.parents = make(map[string][]string, len(t.nodes))
	root := t.nodes[RootID]
	if root == nil {
		return
	}
	type frame struct {
		id    string
		chain []string
	}
	stack := []frame{{id: RootID}}
	seen := map[string]bool{}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[f.id] {
			continue
		}
		seen[f.id] = true
		node := t.nodes[f.id]
		if node == nil {
			continue
		}
		childChain := make([]string, len(f.chain), len(f.chain)+1)
		copy(childChain, f.chain)
		childChain = append(childChain, f.id)
		for _, child := range node.Children {
			if _, ok := t.nodes[child]; !ok {
				continue
			}
			t.parents[child] = childChain
			stack = append(stack, frame{id: child, chain: childChain})
		}
	}
}
