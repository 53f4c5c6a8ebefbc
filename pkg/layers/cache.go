package layers

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/layercam/pkg/geom"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/planar"
	"github.com/chazu/layercam/pkg/schedule"
	"github.com/chazu/layercam/pkg/toolpath"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// TabSpec says where tabs go. Points take precedence over Count.
type TabSpec struct {
	Count       int
	WidthFactor float64
	Points      []v2.Vec
}

// Enabled reports whether any tabs are requested.
func (s TabSpec) Enabled() bool {
	return s.Count > 0 || len(s.Points) > 0
}

type cacheKey struct {
	offset   int64 // micrometre-quantized
	sublayer bool
}

// derivations are computed lazily, each from the previous one.
type derivations struct {
	base      []toolpath.Item // continuous, helical entries placed
	tabbed    []toolpath.Item // split at tabs
	untwinned []toolpath.Item // split at tabs, twins restored
}

// PathCache memoizes planner output per (offset, sublayer) and the tab
// derivations requested per tab status. It is not safe for concurrent use;
// each operation owns one.
type PathCache struct {
	planner planar.Planner
	props   schedule.OperationProps
	tabs    TabSpec

	entries map[cacheKey]*derivations
	calls   int
}

// NewPathCache returns an empty cache in front of p.
func NewPathCache(p planar.Planner, props schedule.OperationProps, tabs TabSpec) *PathCache {
	return &PathCache{
		planner: p,
		props:   props,
		tabs:    tabs,
		entries: make(map[cacheKey]*derivations),
	}
}

// PlannerCalls returns how many times the planner has been asked.
func (c *PathCache) PlannerCalls() int { return c.calls }

// Get returns the items for one offset in the shape status needs: layers
// above the tabs cut continuous paths, the first layer below splits them at
// tabs, later layers also swap skinned paths for their plain twins.
// A cancelled context yields nil items and a nil error.
func (c *PathCache) Get(ctx context.Context, offset float64, sublayer bool, status schedule.TabStatus) ([]toolpath.Item, error) {
	key := cacheKey{offset: int64(math.Round(offset * 1e6)), sublayer: sublayer}
	d, ok := c.entries[key]
	if !ok {
		c.calls++
		out, err := c.planner.Plan(ctx, planar.Request{Offset: offset, Sublayer: sublayer})
		if err != nil {
			return nil, fmt.Errorf("plan offset %g: %w", offset, err)
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := checkOutput(out); err != nil {
			return nil, fmt.Errorf("plan offset %g: %w", offset, err)
		}
		d = &derivations{base: c.placeEntries(out)}
		c.entries[key] = d
	}

	if status == schedule.TabsAbove || !c.tabs.Enabled() {
		return d.base, nil
	}
	if d.tabbed == nil {
		d.tabbed = c.splitAtTabs(d.base)
	}
	if status == schedule.TabsFirst {
		return d.tabbed, nil
	}
	if d.untwinned == nil {
		d.untwinned = make([]toolpath.Item, len(d.tabbed))
		for i, it := range d.tabbed {
			d.untwinned[i] = it.Map(func(tp *toolpath.Toolpath) []*toolpath.Toolpath {
				return []*toolpath.Toolpath{tp.Untwinned()}
			})
		}
	}
	return d.untwinned, nil
}

// checkOutput rejects planner output that would cut nothing.
func checkOutput(out toolpath.PathOutput) error {
	if len(out.Items) == 0 {
		return fmt.Errorf("no toolpaths: %w", planar.ErrDegenerateContour)
	}
	for i, it := range out.Items {
		leaves := it.Flatten()
		if len(leaves) == 0 {
			return fmt.Errorf("item %d is empty: %w", i, planar.ErrDegenerateContour)
		}
		for _, tp := range leaves {
			if tp.Path == nil || tp.Path.Empty() || tp.Path.Length() < geom.Eps {
				return fmt.Errorf("item %d has an empty path: %w", i, planar.ErrDegenerateContour)
			}
		}
	}
	return nil
}

func (c *PathCache) placeEntries(out toolpath.PathOutput) []toolpath.Item {
	if !c.props.AllowHelicalEntry || len(out.Candidates) == 0 {
		return out.Items
	}
	items := make([]toolpath.Item, len(out.Items))
	for i, it := range out.Items {
		items[i] = it.Map(func(tp *toolpath.Toolpath) []*toolpath.Toolpath {
			if tp.Entry.Kind != toolpath.EntryNone {
				return []*toolpath.Toolpath{tp}
			}
			e, ok := toolpath.FindHelicalEntry(tp.Path, out.Candidates, tp.Tool)
			if !ok {
				logging.Logger().Debug("no room for helical entry", "start", tp.Path.Start().Vec)
				return []*toolpath.Toolpath{tp}
			}
			with := tp.With(tp.Path)
			with.Entry = e
			return []*toolpath.Toolpath{with}
		})
	}
	return items
}

// splitAtTabs cuts every toolpath at its tabs. User tab points are given to
// the toolpath they lie closest to.
func (c *PathCache) splitAtTabs(items []toolpath.Item) []toolpath.Item {
	var leaves []*toolpath.Toolpath
	for _, it := range items {
		leaves = append(leaves, it.Flatten()...)
	}
	points := make(map[*toolpath.Toolpath][]v2.Vec)
	for _, pt := range c.tabs.Points {
		var best *toolpath.Toolpath
		bestDist := math.Inf(1)
		for _, tp := range leaves {
			if _, d := tp.Path.ClosestPoint(pt); d < bestDist {
				best, bestDist = tp, d
			}
		}
		if best != nil {
			points[best] = append(points[best], pt)
		}
	}

	out := make([]toolpath.Item, len(items))
	for i, it := range items {
		out[i] = it.Map(func(tp *toolpath.Toolpath) []*toolpath.Toolpath {
			var tabs toolpath.Tabs
			if len(c.tabs.Points) > 0 {
				tabs = tp.UserTabs(points[tp], c.tabs.WidthFactor)
			} else {
				tabs = tp.AutoTabs(c.tabs.Count, c.tabs.WidthFactor)
			}
			return tp.CutByTabs(tabs)
		})
	}
	return out
}
