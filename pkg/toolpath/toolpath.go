package toolpath

import (
	"sync"

	"github.com/chazu/layercam/pkg/geom"
)

// Toolpath is a path bound to a tool. Build it with a struct literal and
// treat it as immutable afterwards; use With to derive variants.
type Toolpath struct {
	Path      *geom.Path
	Tool      *Tool
	Transform Transform
	Entry     Entry

	IsTab            bool
	WasPreviouslyCut bool
	IsCleanup        bool

	// Twin is the plain rendition of a skinned (trochoidal) path. Layers
	// below an established tab cut the twin instead of the skin.
	Twin *geom.Path

	once        sync.Once
	transformed *geom.Path
}

// Transformed returns the path with Transform applied. The transform runs at
// most once per toolpath.
func (tp *Toolpath) Transformed() *geom.Path {
	tp.once.Do(func() {
		if tp.Transform == nil {
			tp.transformed = tp.Path
			return
		}
		tp.transformed = tp.Transform.Apply(tp.Path)
	})
	return tp.transformed
}

// With returns a copy of tp carrying path instead, with a fresh transform
// memo.
func (tp *Toolpath) With(path *geom.Path) *Toolpath {
	return &Toolpath{
		Path:             path,
		Tool:             tp.Tool,
		Transform:        tp.Transform,
		Entry:            tp.Entry,
		IsTab:            tp.IsTab,
		WasPreviouslyCut: tp.WasPreviouslyCut,
		IsCleanup:        tp.IsCleanup,
		Twin:             tp.Twin,
	}
}

// Untwinned returns the toolpath with its twin swapped in, or tp itself
// when there is no twin.
func (tp *Toolpath) Untwinned() *Toolpath {
	if tp.Twin == nil {
		return tp
	}
	out := tp.With(tp.Twin)
	out.Twin = nil
	out.Transform = nil
	return out
}

// CutByTabs splits the toolpath at tab boundaries into alternating cut and
// tab pieces. Tab pieces never carry the transform. A cut piece that follows
// a tab takes the tab's override entry, if any.
func (tp *Toolpath) CutByTabs(tabs Tabs) []*Toolpath {
	L := tp.Path.Length()
	kind, _ := tabs.Cut(0, L)
	if kind == CutUnchanged || L <= 0 {
		return []*Toolpath{tp}
	}

	var out []*Toolpath
	piece := func(a, b float64) *Toolpath {
		p := tp.With(tp.Path.Subpath(a, b))
		if tp.Twin != nil {
			scale := tp.Twin.Length() / L
			p.Twin = tp.Twin.Subpath(a*scale, b*scale)
		}
		return p
	}
	cur := 0.0
	entry := tp.Entry
	for _, t := range tabs.overlapping(0, L) {
		s, e := max(t.Start, 0), min(t.End, L)
		if s > cur+geom.Eps {
			p := piece(cur, s)
			p.Entry = entry
			out = append(out, p)
		}
		if e > max(cur, s)+geom.Eps {
			tab := piece(max(cur, s), e)
			tab.IsTab = true
			tab.Transform = nil
			tab.Twin = nil
			tab.Entry = Entry{}
			out = append(out, tab)
		}
		entry = Entry{}
		if t.Entry != nil {
			entry = *t.Entry
		}
		cur = max(cur, e)
	}
	if L > cur+geom.Eps {
		p := piece(cur, L)
		p.Entry = entry
		out = append(out, p)
	}
	return out
}

// Orient returns path running in the cutting direction: clockwise around
// outside contours when climb milling, counter-clockwise inside, and the
// opposite for conventional milling.
func Orient(path *geom.Path, outside, climb bool) *geom.Path {
	want := 1
	if outside == climb {
		want = -1
	}
	if o := path.Orientation(); o != 0 && o != want {
		return path.Reverse()
	}
	return path
}
