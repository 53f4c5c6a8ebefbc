package toolpath

import (
	"sort"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Tab is a [Start, End) arc-length interval left uncut. Entry, when set,
// replaces the entry of the cut piece that follows the tab.
type Tab struct {
	Start, End float64
	Entry      *Entry
}

// Tabs is a set of tab intervals along one path.
type Tabs []Tab

// CutKind classifies the result of Tabs.Cut.
type CutKind int

const (
	CutUnchanged CutKind = iota // no tab touches the span
	CutRemoved                  // the span lies entirely inside tabs
	CutSplit                    // some pieces remain
)

func (k CutKind) String() string {
	switch k {
	case CutUnchanged:
		return "unchanged"
	case CutRemoved:
		return "removed"
	default:
		return "split"
	}
}

// Span is an interval relative to the start of the span passed to Cut.
type Span struct {
	Start, End float64
}

func (ts Tabs) overlapping(start, end float64) Tabs {
	var out Tabs
	for _, t := range ts {
		if t.Start < end && t.End > start {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Cut intersects [start, end) with every tab. Tabs that only touch the span
// at its boundary do not overlap it. For CutSplit the remaining spans are
// returned relative to start.
func (ts Tabs) Cut(start, end float64) (CutKind, []Span) {
	hits := ts.overlapping(start, end)
	if len(hits) == 0 {
		return CutUnchanged, nil
	}
	var spans []Span
	cur := start
	for _, t := range hits {
		if t.Start > cur {
			spans = append(spans, Span{Start: cur - start, End: t.Start - start})
		}
		cur = max(cur, t.End)
	}
	if cur < end {
		spans = append(spans, Span{Start: cur - start, End: end - start})
	}
	if len(spans) == 0 {
		return CutRemoved, nil
	}
	return CutSplit, spans
}

func (tp *Toolpath) tabWidth(widthFactor float64) float64 {
	return tp.Tool.Diameter * (1 + widthFactor)
}

// AutoTabs places n evenly spaced tabs, offset by half a spacing so none
// sits on the seam of a closed path.
func (tp *Toolpath) AutoTabs(n int, widthFactor float64) Tabs {
	L := tp.Path.Length()
	if n <= 0 || L <= 0 {
		return nil
	}
	w := tp.tabWidth(widthFactor)
	spacing := L / float64(n)
	tabs := make(Tabs, 0, n)
	for i := 0; i < n; i++ {
		c := spacing * (float64(i) + 0.5)
		tabs = append(tabs, Tab{Start: max(0, c-w/2), End: min(L, c+w/2)})
	}
	return tabs
}

// UserTabs anchors one tab at the closest path position to each point. On a
// closed path a window crossing the seam becomes a head and a tail tab.
func (tp *Toolpath) UserTabs(points []v2.Vec, widthFactor float64) Tabs {
	L := tp.Path.Length()
	if L <= 0 {
		return nil
	}
	w := tp.tabWidth(widthFactor)
	var tabs Tabs
	for _, pt := range points {
		pos, _ := tp.Path.ClosestPoint(pt)
		s, e := pos-w/2, pos+w/2
		switch {
		case !tp.Path.Closed():
			tabs = append(tabs, Tab{Start: max(0, s), End: min(L, e)})
		case s < 0:
			tabs = append(tabs, Tab{Start: 0, End: e}, Tab{Start: s + L, End: L})
		case e > L:
			tabs = append(tabs, Tab{Start: 0, End: e - L}, Tab{Start: s, End: L})
		default:
			tabs = append(tabs, Tab{Start: s, End: e})
		}
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].Start < tabs[j].Start })
	return tabs
}
