package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/layercam/pkg/logging"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ArcTolerance is the largest endpoint-to-circle distance ArcThrough will
// absorb by snapping. Anything further off is a construction error.
const ArcTolerance = 1e-3

// ErrArcEndpoints is returned when an arc endpoint does not lie on its circle.
var ErrArcEndpoints = errors.New("arc endpoint off circle")

// Arc is an exact circular arc. A positive span runs counter-clockwise.
type Arc struct {
	Start, End Point
	Center     v2.Vec
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

// NewArc builds an arc from its circle and angular range. The endpoints are
// derived, so the result is always consistent.
func NewArc(center v2.Vec, radius, startAngle, span float64) *Arc {
	a := &Arc{
		Center:     center,
		Radius:     radius,
		StartAngle: startAngle,
		EndAngle:   startAngle + span,
	}
	a.Start = PtOf(a.pointAtAngle(a.StartAngle))
	a.End = PtOf(a.pointAtAngle(a.EndAngle))
	return a
}

// ArcThrough builds the arc from start to end around center. When start and
// end coincide the arc is a full circle. Endpoints off the circle by less
// than ArcTolerance are snapped onto it.
func ArcThrough(start, end Point, center v2.Vec, ccw bool) (*Arc, error) {
	r0 := start.Sub(center).Length()
	r1 := end.Sub(center).Length()
	if r0 < Eps {
		return nil, fmt.Errorf("zero radius at (%g, %g): %w", center.X, center.Y, ErrArcEndpoints)
	}
	if d := math.Abs(r0 - r1); d > ArcTolerance {
		return nil, fmt.Errorf("radius mismatch %.6f vs %.6f: %w", r0, r1, ErrArcEndpoints)
	} else if d > Eps {
		logging.Logger().Debug("snapping arc end onto circle", "center", center, "radius", r0, "error", d)
		hint := end.Hint
		end = PtOf(center.Add(end.Sub(center).MulScalar(r0 / r1)))
		end.Hint = hint
	}

	sa := math.Atan2(start.Y-center.Y, start.X-center.X)
	ea := math.Atan2(end.Y-center.Y, end.X-center.X)
	var span float64
	if ccw {
		span = normAngle(ea - sa)
		if span < Eps {
			span = 2 * math.Pi
		}
	} else {
		span = -normAngle(sa - ea)
		if span > -Eps {
			span = -2 * math.Pi
		}
	}
	return &Arc{
		Start:      start,
		End:        end,
		Center:     center,
		Radius:     r0,
		StartAngle: sa,
		EndAngle:   sa + span,
	}, nil
}

// normAngle maps a to [0, 2π).
func normAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

func (a *Arc) pointAtAngle(theta float64) v2.Vec {
	return v2.Vec{
		X: a.Center.X + a.Radius*math.Cos(theta),
		Y: a.Center.Y + a.Radius*math.Sin(theta),
	}
}

// Span is the signed angular extent.
func (a *Arc) Span() float64 { return a.EndAngle - a.StartAngle }

// CCW reports whether the arc runs counter-clockwise.
func (a *Arc) CCW() bool { return a.Span() > 0 }

// Length returns radius × |span|.
func (a *Arc) Length() float64 { return a.Radius * math.Abs(a.Span()) }

// PointAt returns the point at fraction f ∈ [0, 1] of the arc.
func (a *Arc) PointAt(f float64) Point {
	switch {
	case f <= 0:
		return a.Start
	case f >= 1:
		return a.End
	}
	return PtOf(a.pointAtAngle(a.StartAngle + a.Span()*f))
}

// TangentAt returns the unit direction of travel at fraction f.
func (a *Arc) TangentAt(f float64) v2.Vec {
	theta := a.StartAngle + a.Span()*f
	s, c := math.Sin(theta), math.Cos(theta)
	if a.CCW() {
		return v2.Vec{X: -s, Y: c}
	}
	return v2.Vec{X: s, Y: -c}
}

// Sub returns the part of the arc between fractions f0 and f1. Endpoints
// that coincide with the original ones are kept verbatim.
func (a *Arc) Sub(f0, f1 float64) *Arc {
	span := a.Span()
	s := NewArc(a.Center, a.Radius, a.StartAngle+span*f0, span*(f1-f0))
	if f0 <= 0 {
		s.Start = a.Start
	}
	if f1 >= 1 {
		s.End = a.End
	}
	return s
}

// Reverse returns the same arc traversed the other way.
func (a *Arc) Reverse() *Arc {
	return &Arc{
		Start:      a.End,
		End:        a.Start,
		Center:     a.Center,
		Radius:     a.Radius,
		StartAngle: a.EndAngle,
		EndAngle:   a.StartAngle,
	}
}

// Contains reports whether the direction theta (radians, from the center)
// falls inside the arc's sweep, and how far along the sweep it sits.
func (a *Arc) Contains(theta float64) (bool, float64) {
	span := a.Span()
	if math.Abs(span) >= 2*math.Pi-Eps {
		if span > 0 {
			return true, normAngle(theta - a.StartAngle)
		}
		return true, normAngle(a.StartAngle - theta)
	}
	var d float64
	if span > 0 {
		d = normAngle(theta - a.StartAngle)
	} else {
		d = normAngle(a.StartAngle - theta)
	}
	if d <= math.Abs(span)+Eps {
		return true, d
	}
	return false, 0
}

// Bounds encloses the endpoints and every axis crossing inside the sweep.
func (a *Arc) Bounds() sdf.Box2 {
	b := boxInclude(boxInclude(EmptyBox(), a.Start.Vec), a.End.Vec)
	for k := 0; k < 4; k++ {
		theta := float64(k) * math.Pi / 2
		if ok, _ := a.Contains(theta); ok {
			b = boxInclude(b, a.pointAtAngle(theta))
		}
	}
	return b
}

// Polygonize approximates the arc with chords whose sagitta stays below tol.
// The start point is not included.
func (a *Arc) Polygonize(tol float64) []v2.Vec {
	n := 1
	if a.Radius > tol && tol > 0 {
		step := 2 * math.Acos(1-tol/a.Radius)
		n = int(math.Ceil(math.Abs(a.Span()) / step))
	}
	if n < 1 {
		n = 1
	}
	pts := make([]v2.Vec, 0, n)
	for i := 1; i < n; i++ {
		pts = append(pts, a.pointAtAngle(a.StartAngle+a.Span()*float64(i)/float64(n)))
	}
	return append(pts, a.End.Vec)
}
