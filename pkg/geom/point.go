package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Eps is the distance below which two coordinates are treated as equal.
const Eps = 1e-9

// SpeedHint tags the segment that follows a point.
type SpeedHint int

const (
	HintNormal          SpeedHint = iota // regular cutting feed
	HintRapid                            // segment crosses already-cleared area
	HintDesiredDiameter                  // segment runs at the planner's target engagement
)

func (h SpeedHint) String() string {
	switch h {
	case HintNormal:
		return "normal"
	case HintRapid:
		return "rapid"
	case HintDesiredDiameter:
		return "desired-diameter"
	default:
		return "unknown"
	}
}

// Point is a 2D coordinate plus the speed hint for the following segment.
type Point struct {
	v2.Vec
	Hint SpeedHint
}

// Pt returns a point with the normal speed hint.
func Pt(x, y float64) Point {
	return Point{Vec: v2.Vec{X: x, Y: y}}
}

// PtOf wraps a vector as a point with the normal speed hint.
func PtOf(v v2.Vec) Point {
	return Point{Vec: v}
}

// Eq compares coordinates only; hints are ignored.
func (p Point) Eq(q Point) bool {
	return p.X == q.X && p.Y == q.Y
}

// Near reports whether q lies within tol of p.
func (p Point) Near(q Point, tol float64) bool {
	return p.Dist(q) <= tol
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func cross(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

// EmptyBox encloses nothing; it is the identity element for BoxUnion.
func EmptyBox() sdf.Box2 {
	inf := math.Inf(1)
	return sdf.Box2{
		Min: v2.Vec{X: inf, Y: inf},
		Max: v2.Vec{X: -inf, Y: -inf},
	}
}

func boxInclude(b sdf.Box2, v v2.Vec) sdf.Box2 {
	b.Min.X = math.Min(b.Min.X, v.X)
	b.Min.Y = math.Min(b.Min.Y, v.Y)
	b.Max.X = math.Max(b.Max.X, v.X)
	b.Max.Y = math.Max(b.Max.Y, v.Y)
	return b
}

// BoxUnion returns the smallest box enclosing a and b.
func BoxUnion(a, b sdf.Box2) sdf.Box2 {
	if BoxEmpty(a) {
		return b
	}
	if BoxEmpty(b) {
		return a
	}
	return boxInclude(boxInclude(a, b.Min), b.Max)
}

// BoxEmpty reports whether b encloses no point at all.
func BoxEmpty(b sdf.Box2) bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y
}

// BoxesOverlap reports whether a and b share any area, counting boxes that
// merely touch within tol as overlapping.
func BoxesOverlap(a, b sdf.Box2, tol float64) bool {
	if BoxEmpty(a) || BoxEmpty(b) {
		return false
	}
	return a.Min.X <= b.Max.X+tol && b.Min.X <= a.Max.X+tol &&
		a.Min.Y <= b.Max.Y+tol && b.Min.Y <= a.Max.Y+tol
}
