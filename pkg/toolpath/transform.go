package toolpath

import (
	"math"

	"github.com/chazu/layercam/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Transform rewrites a toolpath's geometry. Implementations must be pure.
type Transform interface {
	Apply(p *geom.Path) *geom.Path
}

// Wave perturbs a path sideways along its normal with a sine of the given
// amplitude and wavelength. Step is the sampling distance; zero samples 16
// times per wavelength.
type Wave struct {
	Amplitude  float64
	Wavelength float64
	Step       float64
}

var _ Transform = Wave{}

// Apply implements Transform.
func (w Wave) Apply(p *geom.Path) *geom.Path {
	L := p.Length()
	if w.Amplitude == 0 || w.Wavelength <= 0 || L <= 0 {
		return p
	}
	step := w.Step
	if step <= 0 {
		step = w.Wavelength / 16
	}
	o := p.Orientation()
	if o == 0 || !p.Closed() {
		o = 1
	}
	n := int(math.Ceil(L / step))
	last := n
	if p.Closed() {
		last = n - 1
	}
	nodes := make([]geom.Node, 0, last+1)
	for i := 0; i <= last; i++ {
		pos := L * float64(i) / float64(n)
		pt := p.PointAt(pos)
		t := p.TangentAt(pos)
		d := w.Amplitude * math.Sin(2*math.Pi*pos/w.Wavelength) * float64(o)
		moved := geom.PtOf(pt.Add(v2.Vec{X: t.Y, Y: -t.X}.MulScalar(d)))
		moved.Hint = pt.Hint
		nodes = append(nodes, geom.PointNode(moved))
	}
	return geom.NewPath(nodes, p.Closed())
}

// Rigid rotates a path by Angle radians about the origin, then translates
// it by Offset. Arcs stay arcs.
type Rigid struct {
	Angle  float64
	Offset v2.Vec
}

var _ Transform = Rigid{}

func (r Rigid) matrix() sdf.M33 {
	return sdf.Translate2d(r.Offset).Mul(sdf.Rotate2d(r.Angle))
}

// Apply implements Transform.
func (r Rigid) Apply(p *geom.Path) *geom.Path {
	m := r.matrix()
	move := func(pt geom.Point) geom.Point {
		q := geom.PtOf(m.MulPosition(pt.Vec))
		q.Hint = pt.Hint
		return q
	}
	nodes := p.Nodes()
	for i, n := range nodes {
		if !n.IsArc() {
			nodes[i] = geom.PointNode(move(n.End()))
			continue
		}
		a := n.Arc()
		nodes[i] = geom.ArcNode(&geom.Arc{
			Start:      move(a.Start),
			End:        move(a.End),
			Center:     m.MulPosition(a.Center),
			Radius:     a.Radius,
			StartAngle: a.StartAngle + r.Angle,
			EndAngle:   a.EndAngle + r.Angle,
		})
	}
	return geom.NewPath(nodes, p.Closed())
}
