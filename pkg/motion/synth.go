package motion

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/layercam/pkg/gcode"
	"github.com/chazu/layercam/pkg/geom"
	"github.com/chazu/layercam/pkg/layers"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/schedule"
	"github.com/chazu/layercam/pkg/toolpath"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNoTool is returned for a toolpath without a tool.
var ErrNoTool = errors.New("toolpath has no tool")

const (
	// joinFraction of the tool diameter is the largest gap closed by a
	// straight feed move instead of a retract.
	joinFraction = 0.01
	// minRampFraction of the tool diameter is the shortest ramp pass;
	// anything shorter becomes a vertical plunge.
	minRampFraction = 0.1

	zEps = 1e-6
)

// Stats counts the entry decisions of one run.
type Stats struct {
	Ramps    int
	Helices  int
	Plunges  int
	Retracts int
}

// Synth is the motion synthesizer for one operation. It is not safe for
// concurrent use.
type Synth struct {
	machine schedule.MachineParams
	props   schedule.OperationProps

	cmds  []gcode.Command
	pos   v3.Vec // NaN while unknown
	stats Stats
}

// New returns a synthesizer for the given machine and operation.
func New(machine schedule.MachineParams, props schedule.OperationProps) *Synth {
	return &Synth{machine: machine, props: props}
}

// Stats returns the counters of the last Run.
func (s *Synth) Stats() Stats { return s.stats }

// Run emits the motion for layers in order, finishing at safe Z. A
// cancelled context yields nil commands and a nil error.
func (s *Synth) Run(ctx context.Context, cls []*layers.CutLayer) ([]gcode.Command, error) {
	s.cmds = nil
	s.stats = Stats{}
	s.pos = v3.Vec{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

	for i, l := range cls {
		if ctx.Err() != nil {
			return nil, nil
		}
		for j, tp := range l.Toolpaths() {
			if tp.Tool == nil {
				return nil, fmt.Errorf("layer %d toolpath %d: %w", i, j, ErrNoTool)
			}
			s.cut(l, tp, j == 0)
		}
	}
	s.retract()
	logging.Logger().Debug("synthesized motion",
		"layers", len(cls), "commands", len(s.cmds),
		"ramps", s.stats.Ramps, "helices", s.stats.Helices,
		"plunges", s.stats.Plunges, "retracts", s.stats.Retracts)
	return s.cmds, nil
}

// targetZ is the depth a toolpath is cut at. Tab pieces stay on the tab,
// with clearance once the tab has been exposed by an earlier layer.
func (s *Synth) targetZ(l *layers.CutLayer, tp *toolpath.Toolpath) float64 {
	if !tp.IsTab {
		return l.Depth
	}
	tab := s.props.EffectiveTabDepth()
	if l.TabStatus != schedule.TabsFirst {
		tab += s.machine.TabClearance
	}
	return math.Max(l.Depth, tab)
}

func (s *Synth) cut(l *layers.CutLayer, tp *toolpath.Toolpath, first bool) {
	path := tp.Transformed()
	if path.Empty() {
		return
	}
	tool := tp.Tool
	z := s.targetZ(l, tp)
	helix := tp.Entry.Kind == toolpath.EntryHelix && s.props.AllowHelicalEntry

	approach := path.Start().Vec
	if helix {
		approach = tp.Entry.Point
	}
	s.travel(approach, z, first && l.ForceJoin, tool)

	switch {
	case z > s.pos.Z+zEps:
		s.rapid(v3.Vec{X: s.pos.X, Y: s.pos.Y, Z: z})
	case z < s.pos.Z-zEps:
		s.enter(l, tp, path, z, helix)
	}

	start := path.Start().Vec
	if s.xy().Sub(start).Length() > geom.Eps {
		s.linear(v3.Vec{X: start.X, Y: start.Y, Z: z}, tool.HFeed)
	}
	s.follow(path, z, z, tool.HFeed)
}

func (s *Synth) xy() v2.Vec { return v2.Vec{X: s.pos.X, Y: s.pos.Y} }

// travel brings the tool over to. Gaps above joinFraction of the diameter
// retract first unless join allows a feed move at the current height. A feed
// across never runs below z, the height the next cut starts at.
func (s *Synth) travel(to v2.Vec, z float64, join bool, tool *toolpath.Tool) {
	if math.IsNaN(s.pos.X) || math.IsNaN(s.pos.Z) {
		s.retract()
		s.rapid(v3.Vec{X: to.X, Y: to.Y, Z: s.pos.Z})
		return
	}
	d := s.xy().Sub(to).Length()
	switch {
	case d > joinFraction*tool.Diameter:
		if join {
			s.riseTo(z)
			s.linear(v3.Vec{X: to.X, Y: to.Y, Z: s.pos.Z}, tool.HFeed)
			return
		}
		s.retract()
		s.rapid(v3.Vec{X: to.X, Y: to.Y, Z: s.pos.Z})
	case d > geom.Eps:
		s.riseTo(z)
		s.linear(v3.Vec{X: to.X, Y: to.Y, Z: s.pos.Z}, tool.HFeed)
	}
}

// riseTo lifts the tool straight up to z if it is below it.
func (s *Synth) riseTo(z float64) {
	if z > s.pos.Z+zEps {
		s.rapidZ(z)
	}
}

// retract goes up to safe Z.
func (s *Synth) retract() {
	if !math.IsNaN(s.pos.Z) && s.pos.Z >= s.machine.SafeZ-zEps {
		return
	}
	if !math.IsNaN(s.pos.Z) {
		s.stats.Retracts++
	}
	s.rapid(v3.Vec{X: s.pos.X, Y: s.pos.Y, Z: s.machine.SafeZ})
}

// enter descends to z. Rapids go no lower than the floor the previous layer
// verified; the rest is cut with one entry strategy.
func (s *Synth) enter(l *layers.CutLayer, tp *toolpath.Toolpath, path *geom.Path, z float64, helix bool) {
	if s.pos.Z > s.machine.SemiSafeZ {
		s.rapidZ(math.Max(s.machine.SemiSafeZ, z))
	}
	if l.PrevDepth < s.pos.Z {
		s.rapidZ(math.Max(l.PrevDepth, z))
	}
	if s.pos.Z <= z+zEps {
		return
	}

	switch {
	case tp.WasPreviouslyCut && tp.Entry.Kind == toolpath.EntryPlunge:
		s.stats.Plunges++
		s.linear(v3.Vec{X: s.pos.X, Y: s.pos.Y, Z: z}, tp.Tool.HFeed)
	case helix:
		s.stats.Helices++
		s.helix(tp, z)
	default:
		s.ramp(tp, path, z)
	}
}

// descentFeed compensates the feed for the vertical component of a sloped
// move. The first descent of an entry is slowed by the plunge feed ratio
// unless the stock there has been cut before.
func (s *Synth) descentFeed(tp *toolpath.Toolpath, first bool) float64 {
	slope := tp.Tool.Slope()
	f := tp.Tool.HFeed * math.Sqrt(1+1/(slope*slope))
	if first && !tp.WasPreviouslyCut && tp.Tool.PlungeFeedRatio > 0 {
		f *= tp.Tool.PlungeFeedRatio
	}
	return f
}

func (s *Synth) helix(tp *toolpath.Toolpath, z float64) {
	e := tp.Entry
	top := s.pos.Z
	dz := top - z
	perTurn := 2 * math.Pi * e.Radius / tp.Tool.Slope()
	turns := 1
	if perTurn > 0 {
		turns = max(1, int(math.Ceil(dz/perTurn-1e-9)))
	}
	for i := 1; i <= turns; i++ {
		zi := top - dz*float64(i)/float64(turns)
		s.arc(v3.Vec{X: e.Point.X, Y: e.Point.Y, Z: zi}, e.Center, e.CW, s.descentFeed(tp, i == 1))
	}
}

// ramp zig-zags along the path, forward then back, losing height at the
// tool's slope. The last pass is shortened to land on z, and a pass that
// would be shorter than the minimum ramp becomes a plunge. If the ramp
// finishes away from the start, a flat pass returns to it.
func (s *Synth) ramp(tp *toolpath.Toolpath, path *geom.Path, z float64) {
	tool := tp.Tool
	slope := tool.Slope()
	L := path.Length()
	minLen := minRampFraction * tool.Diameter

	cursor := 0.0
	forward := true
	passes := 0
	for s.pos.Z > z+zEps {
		remaining := s.pos.Z - z
		n := math.Min(L, remaining*slope)
		if n < minLen {
			feed := tool.VFeed
			if feed <= 0 {
				feed = tool.HFeed
			}
			if passes == 0 && !tp.WasPreviouslyCut && tool.PlungeFeedRatio > 0 {
				feed *= tool.PlungeFeedRatio
			}
			if passes == 0 {
				s.stats.Plunges++
			}
			logging.Logger().Debug("ramp too short, plunging", "length", n, "minimum", minLen)
			s.linear(v3.Vec{X: s.pos.X, Y: s.pos.Y, Z: z}, feed)
			break
		}
		drop := math.Min(remaining, n/slope)
		var seg *geom.Path
		if forward {
			seg = path.Subpath(cursor, math.Min(L, cursor+n))
			cursor = math.Min(L, cursor+n)
		} else {
			seg = path.Subpath(math.Max(0, cursor-n), cursor).Reverse()
			cursor = math.Max(0, cursor-n)
		}
		s.follow(seg, s.pos.Z, s.pos.Z-drop, s.descentFeed(tp, passes == 0))
		forward = !forward
		passes++
	}
	if passes == 0 {
		return
	}
	s.stats.Ramps++
	if cursor > geom.Eps && !path.PointAt(cursor).Near(path.Start(), geom.Eps) {
		s.follow(path.Subpath(0, cursor).Reverse(), z, z, tool.HFeed)
	}
}

// follow cuts along path with Z changing linearly from z0 to z1 by arc
// length.
func (s *Synth) follow(path *geom.Path, z0, z1, feed float64) {
	if path.Empty() {
		return
	}
	L := path.Length()
	ls := path.Lengths()
	zAt := func(d float64) float64 {
		if L <= 0 {
			return z1
		}
		return z0 + (z1-z0)*d/L
	}
	for i := 1; i < path.Len(); i++ {
		n := path.Node(i)
		z := zAt(ls[i])
		if n.IsArc() {
			a := n.Arc()
			s.arc(v3.Vec{X: a.End.X, Y: a.End.Y, Z: z}, a.Center, !a.CCW(), feed)
			continue
		}
		p := n.End()
		s.linear(v3.Vec{X: p.X, Y: p.Y, Z: z}, feed)
	}
	if path.Closed() {
		p := path.Start()
		s.linear(v3.Vec{X: p.X, Y: p.Y, Z: z1}, feed)
	}
}

func (s *Synth) same(to v3.Vec) bool {
	return math.Abs(to.X-s.pos.X) < geom.Eps &&
		math.Abs(to.Y-s.pos.Y) < geom.Eps &&
		math.Abs(to.Z-s.pos.Z) < geom.Eps
}

// moveTo records to as the new position; NaN axes keep their value.
func (s *Synth) moveTo(to v3.Vec) {
	if !math.IsNaN(to.X) {
		s.pos.X = to.X
	}
	if !math.IsNaN(to.Y) {
		s.pos.Y = to.Y
	}
	if !math.IsNaN(to.Z) {
		s.pos.Z = to.Z
	}
}

func (s *Synth) rapid(to v3.Vec) {
	if s.same(to) {
		return
	}
	s.cmds = append(s.cmds, gcode.Rapid(to))
	s.moveTo(to)
}

func (s *Synth) rapidZ(z float64) {
	s.rapid(v3.Vec{X: s.pos.X, Y: s.pos.Y, Z: z})
}

func (s *Synth) linear(to v3.Vec, feed float64) {
	if s.same(to) {
		return
	}
	s.cmds = append(s.cmds, gcode.Linear(to, feed))
	s.moveTo(to)
}

func (s *Synth) arc(to v3.Vec, center v2.Vec, cw bool, feed float64) {
	s.cmds = append(s.cmds, gcode.Arc(to, center, cw, feed))
	s.moveTo(to)
}
