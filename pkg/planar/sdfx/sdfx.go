// Package sdfx implements the planar.Planner interface for simple polygons.
// Offsets are built vertex by vertex with round outer corners and mitred
// inner corners, then checked against a github.com/deadsy/sdfx signed
// distance field of the source contour.
package sdfx

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/layercam/pkg/geom"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/planar"
	"github.com/chazu/layercam/pkg/toolpath"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Compile-time interface check.
var _ planar.Planner = (*Planner)(nil)

const (
	// flattenTolerance is the chord error used when source contours carry arcs.
	flattenTolerance = 0.01
	// verifyTolerance is how much closer than the tool radius an offset
	// vertex may sit before it is reported.
	verifyTolerance = 1e-3
)

// Planner offsets a fixed set of contours for one tool.
type Planner struct {
	contours  []*geom.Path
	side      planar.Side
	tool      *toolpath.Tool
	transform toolpath.Transform
	skin      toolpath.Transform
}

// Option configures a Planner.
type Option func(*Planner)

// WithTransform attaches a lazily applied transform to every toolpath.
func WithTransform(t toolpath.Transform) Option {
	return func(p *Planner) { p.transform = t }
}

// WithSkin bakes t into every toolpath and keeps the plain path as its twin.
func WithSkin(t toolpath.Transform) Option {
	return func(p *Planner) { p.skin = t }
}

// New returns a Planner cutting contours on the given side.
func New(contours []*geom.Path, side planar.Side, tool *toolpath.Tool, opts ...Option) *Planner {
	p := &Planner{contours: contours, side: side, tool: tool}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Plan implements planar.Planner. Each contour becomes one item; inside
// cuts also report their tool-center boundary as a helix candidate.
func (p *Planner) Plan(ctx context.Context, req planar.Request) (toolpath.PathOutput, error) {
	var out toolpath.PathOutput
	for i, c := range p.contours {
		if ctx.Err() != nil {
			return toolpath.PathOutput{}, nil
		}
		path, err := p.offset(ctx, c, req.Offset)
		if err != nil {
			return toolpath.PathOutput{}, fmt.Errorf("contour %d at offset %g: %w", i, req.Offset, err)
		}
		if path == nil {
			return toolpath.PathOutput{}, nil
		}
		out.Items = append(out.Items, toolpath.Single(p.toolpath(path)))
		if p.side == planar.Inside {
			out.Candidates = append(out.Candidates, path)
		}
	}
	return out, nil
}

func (p *Planner) toolpath(path *geom.Path) *toolpath.Toolpath {
	if path.Closed() {
		path = toolpath.Orient(path, p.side != planar.Inside, p.tool.Climb)
	}
	tp := &toolpath.Toolpath{Path: path, Tool: p.tool, Transform: p.transform}
	if p.skin != nil {
		tp.Twin = path
		tp.Path = p.skin.Apply(path)
	}
	return tp
}

// offset returns the tool-center path for contour c, or nil if ctx was
// cancelled part way.
func (p *Planner) offset(ctx context.Context, c *geom.Path, offset float64) (*geom.Path, error) {
	if c.Empty() || c.Length() <= geom.Eps {
		return nil, fmt.Errorf("empty contour: %w", planar.ErrDegenerateContour)
	}
	if p.side == planar.On || !c.Closed() {
		return c, nil
	}

	vs := dedupe(c.Polygonize(flattenTolerance))
	if len(vs) < 3 || c.Orientation() == 0 {
		return nil, fmt.Errorf("contour has no area: %w", planar.ErrDegenerateContour)
	}
	if c.Orientation() < 0 {
		for i, j := 0, len(vs)-1; i < j; i, j = i+1, j-1 {
			vs[i], vs[j] = vs[j], vs[i]
		}
	}

	s := p.tool.Diameter/2 - offset
	if p.side == planar.Inside {
		s = -s
	}

	n := len(vs)
	normal := func(i int) v2.Vec {
		d := vs[(i+1)%n].Sub(vs[i]).Normalize()
		return v2.Vec{X: d.Y, Y: -d.X}
	}
	var nodes []geom.Node
	entry := make([]v2.Vec, n)
	exit := make([]v2.Vec, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return nil, nil
		}
		v := vs[i]
		n1, n2 := normal((i+n-1)%n), normal(i)
		turn := n1.X*n2.Y - n1.Y*n2.X
		dot := n1.Dot(n2)
		switch {
		case math.Abs(turn) < 1e-12 && dot > 0:
			q := v.Add(n1.MulScalar(s))
			entry[i], exit[i] = q, q
			nodes = append(nodes, geom.PointNode(geom.PtOf(q)))
		case turn*s > 0 || dot <= -1+1e-9:
			sn := n1.MulScalar(math.Copysign(1, s))
			arc := geom.NewArc(v, math.Abs(s), math.Atan2(sn.Y, sn.X), math.Atan2(turn, dot))
			entry[i], exit[i] = arc.Start.Vec, arc.End.Vec
			nodes = append(nodes, geom.PointNode(arc.Start), geom.ArcNode(arc))
		default:
			q := v.Add(n1.Add(n2).MulScalar(s / (1 + dot)))
			entry[i], exit[i] = q, q
			nodes = append(nodes, geom.PointNode(geom.PtOf(q)))
		}
	}

	// Every offset edge must still run the same way as its source edge.
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		if entry[j].Sub(exit[i]).Dot(vs[j].Sub(vs[i])) <= geom.Eps {
			return nil, fmt.Errorf("edge %d collapses at distance %g: %w", i, math.Abs(s), planar.ErrDegenerateContour)
		}
	}

	path := geom.NewPath(nodes, true)
	p.verify(vs, path, s)
	return path.StartAt(firstStraightMidpoint(path)), nil
}

// firstStraightMidpoint returns the position half way along the first line
// segment, so that entries start away from corners.
func firstStraightMidpoint(path *geom.Path) float64 {
	ls := path.Lengths()
	for i := 1; i < len(ls); i++ {
		straight := i >= path.Len() || !path.Node(i).IsArc()
		if straight && ls[i]-ls[i-1] > geom.Eps {
			return (ls[i-1] + ls[i]) / 2
		}
	}
	return 0
}

// verify logs offset vertices that sit closer to the source contour than
// the tool radius, or on the wrong side of it.
func (p *Planner) verify(vs []v2.Vec, path *geom.Path, s float64) {
	if math.Abs(s) < verifyTolerance {
		return
	}
	field, err := sdf.Polygon2D(vs)
	if err != nil {
		logging.Logger().Warn("cannot verify offset contour", "error", err)
		return
	}
	bad, worst := 0, 0.0
	for _, q := range path.Polygonize(flattenTolerance) {
		d := field.Evaluate(q)
		if gap := math.Abs(s) - d*math.Copysign(1, s); gap > verifyTolerance {
			bad++
			worst = math.Max(worst, gap)
		}
	}
	if bad > 0 {
		logging.Logger().Warn("offset contour gouges source", "vertices", bad, "worst", worst, "distance", s)
	}
}

func dedupe(vs []v2.Vec) []v2.Vec {
	out := vs[:0:0]
	for _, v := range vs {
		if len(out) > 0 && v.Sub(out[len(out)-1]).Length() < geom.Eps {
			continue
		}
		out = append(out, v)
	}
	if len(out) > 1 && out[0].Sub(out[len(out)-1]).Length() < geom.Eps {
		out = out[:len(out)-1]
	}
	return out
}
