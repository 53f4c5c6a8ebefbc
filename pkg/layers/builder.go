package layers

import (
	"context"
	"fmt"
	"sort"

	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/schedule"
	"github.com/chazu/layercam/pkg/toolpath"
)

// Builder realizes scheduled layers into ordered cut layers.
type Builder struct {
	Cache *PathCache

	// SpringPass appends a cleanup copy of the final depth. Its pieces are
	// marked as previously cut and enter with a plunge.
	SpringPass bool

	// Progress, if set, is called after every LayerInfo.
	Progress func(done, total int)
}

// Build asks the cache for every offset of every LayerInfo, turns each
// region into its own CutLayer and returns the layers in cutting order.
// A cancelled context yields nil layers and a nil error.
func (b *Builder) Build(ctx context.Context, infos []schedule.LayerInfo) ([]*CutLayer, error) {
	var layers []*CutLayer
	for i, info := range infos {
		if ctx.Err() != nil {
			return nil, nil
		}
		values := info.Offsets.Values()
		perPass := make([][]toolpath.Item, len(values))
		regions := 0
		for k, v := range values {
			items, err := b.Cache.Get(ctx, v, info.IsSublayer, info.TabStatus)
			if err != nil {
				return nil, fmt.Errorf("layer %d at depth %g: %w", i, info.Depth, err)
			}
			if ctx.Err() != nil {
				return nil, nil
			}
			perPass[k] = items
			regions = max(regions, len(items))
		}
		// Passes of one region stay adjacent so that repasses can join.
		for r := 0; r < regions; r++ {
			for k, items := range perPass {
				if r >= len(items) {
					continue
				}
				layers = append(layers, &CutLayer{
					PrevDepth:  info.PrevDepth,
					Depth:      info.Depth,
					TabStatus:  info.TabStatus,
					IsSublayer: info.IsSublayer,
					Items:      []toolpath.Item{items[r]},
					ForceJoin:  k > 0,
					Bounds:     items[r].Bounds(),
					info:       i,
					region:     r,
					pass:       k,
				})
			}
		}
		if b.Progress != nil {
			b.Progress(i+1, len(infos))
		}
	}

	if b.SpringPass {
		layers = append(layers, springPass(layers, len(infos))...)
	}

	tree := NewTree(layers)
	out := tree.Flatten()
	logging.Logger().Debug("built cut layers",
		"infos", len(infos), "layers", len(out), "regions", tree.Regions(),
		"planner_calls", b.Cache.PlannerCalls())
	return out, nil
}

// springPass copies the last pass of every region at the deepest major
// level. level is the key the copies are filed under, past every real level.
func springPass(layers []*CutLayer, level int) []*CutLayer {
	last := -1
	for _, l := range layers {
		if !l.IsSublayer {
			last = max(last, l.info)
		}
	}
	if last < 0 {
		return nil
	}
	final := make(map[int]*CutLayer)
	for _, l := range layers {
		if l.info != last {
			continue
		}
		if prev, ok := final[l.region]; !ok || l.pass > prev.pass {
			final[l.region] = l
		}
	}

	regions := make([]int, 0, len(final))
	for r := range final {
		regions = append(regions, r)
	}
	sort.Ints(regions)

	var out []*CutLayer
	for _, r := range regions {
		l := final[r]
		items := make([]toolpath.Item, len(l.Items))
		for i, it := range l.Items {
			items[i] = it.Map(cleanup)
		}
		out = append(out, &CutLayer{
			PrevDepth:  l.Depth,
			Depth:      l.Depth,
			TabStatus:  l.TabStatus,
			IsSublayer: false,
			Items:      items,
			ForceJoin:  true,
			Bounds:     l.Bounds,
			info:       level,
			region:     l.region,
		})
	}
	return out
}

func cleanup(tp *toolpath.Toolpath) []*toolpath.Toolpath {
	c := tp.With(tp.Path)
	c.IsCleanup = true
	c.WasPreviouslyCut = true
	if !c.IsTab {
		c.Entry = toolpath.PlungeEntry(tp.Path.Start().Vec)
	}
	return []*toolpath.Toolpath{c}
}
