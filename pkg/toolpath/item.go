package toolpath

import (
	"github.com/chazu/layercam/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
)

// Item is either a single toolpath or an ordered group of items. Groups keep
// pieces that belong to one region together.
type Item struct {
	single *Toolpath
	group  []Item
}

// Single wraps one toolpath.
func Single(tp *Toolpath) Item { return Item{single: tp} }

// Group wraps an ordered list of items.
func Group(items ...Item) Item { return Item{group: items} }

// IsGroup reports whether the item is a group.
func (it Item) IsGroup() bool { return it.single == nil }

// Toolpath returns the wrapped toolpath, or nil for a group.
func (it Item) Toolpath() *Toolpath { return it.single }

// Items returns the members of a group.
func (it Item) Items() []Item { return it.group }

// Flatten returns the leaves in order.
func (it Item) Flatten() []*Toolpath {
	if it.single != nil {
		return []*Toolpath{it.single}
	}
	var out []*Toolpath
	for _, sub := range it.group {
		out = append(out, sub.Flatten()...)
	}
	return out
}

// Map rebuilds the item with every leaf replaced by fn's result. A leaf that
// maps to several toolpaths becomes a group.
func (it Item) Map(fn func(*Toolpath) []*Toolpath) Item {
	if it.single != nil {
		tps := fn(it.single)
		if len(tps) == 1 {
			return Single(tps[0])
		}
		items := make([]Item, len(tps))
		for i, tp := range tps {
			items[i] = Single(tp)
		}
		return Group(items...)
	}
	items := make([]Item, len(it.group))
	for i, sub := range it.group {
		items[i] = sub.Map(fn)
	}
	return Group(items...)
}

// Bounds encloses the transformed geometry of every leaf. An item without
// leaves has an empty box, which overlaps nothing.
func (it Item) Bounds() sdf.Box2 {
	b := geom.EmptyBox()
	for _, tp := range it.Flatten() {
		b = geom.BoxUnion(b, tp.Transformed().Bounds())
	}
	return b
}

// PathOutput is what the planar collaborator returns for one request.
// Candidates are boundaries checked when looking for room to place a helix.
type PathOutput struct {
	Items      []Item
	Candidates []*geom.Path
}

// Toolpaths flattens every item.
func (o PathOutput) Toolpaths() []*Toolpath {
	var out []*Toolpath
	for _, it := range o.Items {
		out = append(out, it.Flatten()...)
	}
	return out
}
