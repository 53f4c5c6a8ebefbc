package layers

import (
	"slices"
	"sort"

	"github.com/chazu/layercam/pkg/geom"
)

// overlapTolerance lets boxes that merely touch count as overlapping.
const overlapTolerance = 1e-6

// unit is a set of linked layers that are cut together. Children are the
// shallower units sitting on top of it and are emitted first.
type unit struct {
	members  []int
	children []int
	parent   int
	dead     bool
}

// Tree nests cut layers by depth. Nodes live in an arena and refer to each
// other by index.
type Tree struct {
	layers []*CutLayer
	units  []unit
	roots  []int
}

// NewTree nests layers. Layers sharing a level key (the LayerInfo they came
// from) form one level; levels are processed deepest first, which is the
// reverse of scheduler order. Overlapping layers within a level are linked
// into one unit; a unit overlapping units of deeper levels becomes their
// child, linking those deeper units first when it touches several.
func NewTree(layers []*CutLayer) *Tree {
	t := &Tree{layers: layers}

	byLevel := make(map[int][]int)
	var levels []int
	for i, l := range layers {
		if _, ok := byLevel[l.info]; !ok {
			levels = append(levels, l.info)
		}
		byLevel[l.info] = append(byLevel[l.info], i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	var frontier []int
	for _, lv := range levels {
		var next []int
		used := make(map[int]bool)
		for _, group := range t.linkLevel(byLevel[lv]) {
			u := t.newUnit(group)
			var hits []int
			for _, f := range frontier {
				if !t.units[f].dead && t.overlaps(f, group) {
					hits = append(hits, f)
				}
			}
			if len(hits) == 0 {
				t.roots = append(t.roots, u)
			} else {
				p := hits[0]
				for _, h := range hits[1:] {
					p = t.link(p, h)
				}
				t.setParent(u, p)
				for _, h := range hits {
					used[h] = true
				}
			}
			next = append(next, u)
		}
		for _, f := range frontier {
			if !used[f] && !t.units[f].dead {
				next = append(next, f)
			}
		}
		frontier = next
	}
	return t
}

// linkLevel groups the layers of one level whose boxes overlap, directly or
// through other layers.
func (t *Tree) linkLevel(idx []int) [][]int {
	parent := make([]int, len(idx))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range idx {
		for j := i + 1; j < len(idx); j++ {
			if geom.BoxesOverlap(t.layers[idx[i]].Bounds, t.layers[idx[j]].Bounds, overlapTolerance) {
				if a, b := find(i), find(j); a != b {
					parent[max(a, b)] = min(a, b)
				}
			}
		}
	}
	groups := make(map[int][]int)
	var order []int
	for i := range idx {
		r := find(i)
		if _, ok := groups[r]; !ok {
			order = append(order, r)
		}
		groups[r] = append(groups[r], idx[i])
	}
	out := make([][]int, 0, len(order))
	for _, r := range order {
		out = append(out, groups[r])
	}
	return out
}

func (t *Tree) newUnit(members []int) int {
	t.units = append(t.units, unit{members: members, parent: -1})
	return len(t.units) - 1
}

func (t *Tree) overlaps(u int, group []int) bool {
	for _, m := range t.units[u].members {
		for _, g := range group {
			if geom.BoxesOverlap(t.layers[m].Bounds, t.layers[g].Bounds, overlapTolerance) {
				return true
			}
		}
	}
	return false
}

func (t *Tree) isAncestor(a, b int) bool {
	for p := t.units[b].parent; p >= 0; p = t.units[p].parent {
		if p == a {
			return true
		}
	}
	return false
}

func (t *Tree) detach(u int) {
	if p := t.units[u].parent; p >= 0 {
		t.units[p].children = slices.DeleteFunc(t.units[p].children, func(c int) bool { return c == u })
	} else {
		t.roots = slices.DeleteFunc(t.roots, func(r int) bool { return r == u })
	}
	t.units[u].parent = -1
}

func (t *Tree) setParent(u, p int) {
	t.detach(u)
	t.units[u].parent = p
	t.units[p].children = append(t.units[p].children, u)
}

// absorb moves b's members and children into a and retires b.
func (t *Tree) absorb(a, b int) {
	t.detach(b)
	t.units[a].members = append(t.units[a].members, t.units[b].members...)
	sort.Ints(t.units[a].members)
	for _, c := range slices.Clone(t.units[b].children) {
		t.setParent(c, a)
	}
	t.units[b] = unit{parent: -1, dead: true}
}

// link merges units a and b into one and returns the survivor. Their
// ancestors are linked first so the merged unit keeps a single parent.
func (t *Tree) link(a, b int) int {
	switch {
	case a == b:
		return a
	case t.isAncestor(a, b):
		t.absorb(a, b)
		return a
	case t.isAncestor(b, a):
		t.absorb(b, a)
		return b
	}
	pa, pb := t.units[a].parent, t.units[b].parent
	switch {
	case pa >= 0 && pb >= 0:
		p := t.link(pa, pb)
		if t.units[a].parent != p {
			t.setParent(a, p)
		}
	case pb >= 0:
		t.setParent(a, pb)
	}
	t.absorb(a, b)
	return a
}

// first is the earliest layer index in u's subtree, used to keep regions in
// the order the scheduler produced them.
func (t *Tree) first(u int) int {
	f := len(t.layers)
	if len(t.units[u].members) > 0 {
		f = t.units[u].members[0]
	}
	for _, c := range t.units[u].children {
		f = min(f, t.first(c))
	}
	return f
}

func (t *Tree) ordered(us []int) []int {
	out := slices.Clone(us)
	sort.SliceStable(out, func(i, j int) bool { return t.first(out[i]) < t.first(out[j]) })
	return out
}

// Flatten returns the layers in cutting order: a post-order walk in which
// every unit's shallower children come before the unit itself.
func (t *Tree) Flatten() []*CutLayer {
	out := make([]*CutLayer, 0, len(t.layers))
	var visit func(u int)
	visit = func(u int) {
		for _, c := range t.ordered(t.units[u].children) {
			visit(c)
		}
		for _, m := range t.units[u].members {
			out = append(out, t.layers[m])
		}
	}
	for _, r := range t.ordered(t.roots) {
		visit(r)
	}
	return out
}

// Regions returns the number of independent top-level regions.
func (t *Tree) Regions() int { return len(t.roots) }
