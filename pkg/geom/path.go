package geom

import (
	"math"
	"slices"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Node is either a point (straight segment to it) or an arc.
type Node struct {
	pt  Point
	arc *Arc
}

// PointNode wraps a point.
func PointNode(p Point) Node { return Node{pt: p} }

// ArcNode wraps an arc.
func ArcNode(a *Arc) Node { return Node{arc: a} }

// IsArc reports whether the node is an arc.
func (n Node) IsArc() bool { return n.arc != nil }

// Arc returns the arc, or nil for a point node.
func (n Node) Arc() *Arc { return n.arc }

// End returns where the node finishes: the point itself or the arc's end.
func (n Node) End() Point {
	if n.arc != nil {
		return n.arc.End
	}
	return n.pt
}

// Path is an immutable sequence of nodes. Positions along it are arc-length
// distances from the first node.
type Path struct {
	nodes   []Node
	closed  bool
	segs    []segment
	lengths []float64
}

// NewPath builds a path. A leading arc gets its start point prepended, and a
// closed path drops a trailing point equal to its first point.
func NewPath(nodes []Node, closed bool) *Path {
	ns := slices.Clone(nodes)
	if len(ns) > 0 && ns[0].IsArc() {
		ns = append([]Node{PointNode(ns[0].arc.Start)}, ns...)
	}
	if closed && len(ns) > 1 {
		last := ns[len(ns)-1]
		if !last.IsArc() && last.pt.Near(ns[0].pt, Eps) {
			ns = ns[:len(ns)-1]
		}
	}
	p := &Path{nodes: ns, closed: closed}
	p.segs = p.segments()
	p.lengths = p.computeLengths()
	return p
}

// FromPoints builds a polyline path.
func FromPoints(closed bool, pts ...v2.Vec) *Path {
	ns := make([]Node, len(pts))
	for i, v := range pts {
		ns[i] = PointNode(PtOf(v))
	}
	return NewPath(ns, closed)
}

func (p *Path) computeLengths() []float64 {
	if len(p.nodes) == 0 {
		return nil
	}
	out := make([]float64, 1, len(p.segs)+1)
	for _, s := range p.segs {
		out = append(out, s.end)
	}
	return out
}

// segment is the stretch leading into node, from the previous node's end.
type segment struct {
	from       Point
	node       Node
	start, end float64
}

func (s segment) length() float64 { return s.end - s.start }

// at returns the point d units into the segment.
func (s segment) at(d float64) Point {
	l := s.length()
	if l <= 0 || d <= 0 {
		return s.from
	}
	if d >= l {
		return s.node.End()
	}
	if s.node.IsArc() {
		return s.node.arc.PointAt(d / l)
	}
	to := s.node.pt
	return PtOf(s.from.Add(to.Sub(s.from.Vec).MulScalar(d / l)))
}

func (s segment) tangent(d float64) v2.Vec {
	l := s.length()
	if s.node.IsArc() {
		f := 0.0
		if l > 0 {
			f = d / l
		}
		return s.node.arc.TangentAt(f)
	}
	dir := s.node.pt.Sub(s.from.Vec)
	if dir.Length() < Eps {
		return v2.Vec{}
	}
	return dir.Normalize()
}

// part returns the node covering the relative span [a, b] of the segment.
func (s segment) part(a, b float64) Node {
	l := s.length()
	full := b >= l-Eps
	if s.node.IsArc() {
		if a <= Eps && full {
			return s.node
		}
		return ArcNode(s.node.arc.Sub(a/l, math.Min(b/l, 1)))
	}
	if full {
		return s.node
	}
	return PointNode(s.at(b))
}

func (p *Path) segments() []segment {
	n := len(p.nodes)
	if n == 0 {
		return nil
	}
	segs := make([]segment, 0, n)
	pos := 0.0
	prev := p.nodes[0].End()
	add := func(node Node) {
		var l float64
		if node.IsArc() {
			l = node.arc.Length()
		} else {
			l = prev.Dist(node.pt)
		}
		segs = append(segs, segment{from: prev, node: node, start: pos, end: pos + l})
		pos += l
		prev = node.End()
	}
	for _, node := range p.nodes[1:] {
		add(node)
	}
	if p.closed {
		add(PointNode(p.nodes[0].pt))
	}
	return segs
}

// Closed reports whether the path loops back to its start.
func (p *Path) Closed() bool { return p.closed }

// Empty reports whether the path has no nodes.
func (p *Path) Empty() bool { return len(p.nodes) == 0 }

// Len returns the number of nodes.
func (p *Path) Len() int { return len(p.nodes) }

// Node returns node i.
func (p *Path) Node(i int) Node { return p.nodes[i] }

// Nodes returns a copy of the node list.
func (p *Path) Nodes() []Node { return slices.Clone(p.nodes) }

// Length is the total arc length, including the closing segment.
func (p *Path) Length() float64 {
	if len(p.lengths) == 0 {
		return 0
	}
	return p.lengths[len(p.lengths)-1]
}

// Lengths returns the cumulative length table: 0 for the first node, then
// the position after every following node and, if closed, after the closing
// segment.
func (p *Path) Lengths() []float64 { return slices.Clone(p.lengths) }

// Start returns the first point.
func (p *Path) Start() Point {
	if len(p.nodes) == 0 {
		return Point{}
	}
	return p.nodes[0].pt
}

// End returns where traversal finishes; the first point for closed paths.
func (p *Path) End() Point {
	if len(p.nodes) == 0 {
		return Point{}
	}
	if p.closed {
		return p.nodes[0].pt
	}
	return p.nodes[len(p.nodes)-1].End()
}

// locate returns the segment containing pos, already clamped or wrapped.
func (p *Path) locate(pos float64) (segment, float64, bool) {
	segs := p.segs
	if len(segs) == 0 {
		return segment{}, 0, false
	}
	L := p.Length()
	if p.closed && L > 0 {
		pos = math.Mod(pos, L)
		if pos < 0 {
			pos += L
		}
	}
	pos = math.Max(0, math.Min(pos, L))
	i := sort.Search(len(segs), func(i int) bool { return segs[i].end >= pos })
	if i == len(segs) {
		i = len(segs) - 1
	}
	for i < len(segs)-1 && segs[i].length() <= 0 {
		i++
	}
	return segs[i], pos - segs[i].start, true
}

// PointAt returns the point at arc-length position pos. Closed paths wrap,
// open paths clamp.
func (p *Path) PointAt(pos float64) Point {
	s, d, ok := p.locate(pos)
	if !ok {
		return p.Start()
	}
	return s.at(d)
}

// TangentAt returns the unit direction of travel at pos.
func (p *Path) TangentAt(pos float64) v2.Vec {
	s, d, ok := p.locate(pos)
	if !ok {
		return v2.Vec{}
	}
	return s.tangent(d)
}

// Subpath returns the piece between start and end. On a closed path the
// range may cross the seam (end < start wraps). Subpath(0, Length()) on a
// closed path returns the path itself.
func (p *Path) Subpath(start, end float64) *Path {
	segs := p.segs
	if len(segs) == 0 || math.Abs(end-start) < Eps {
		return &Path{}
	}
	L := p.Length()
	if p.closed {
		if start <= Eps && end >= L-Eps {
			return p
		}
		if L > 0 {
			span := end - start
			start = math.Mod(start, L)
			if start < 0 {
				start += L
			}
			if span >= L-Eps {
				// a whole loop from start; end must not be reduced modulo L
				end = start + L
			} else {
				end = math.Mod(end, L)
				if end < 0 {
					end += L
				}
				if end <= start+Eps {
					end += L
				}
			}
		}
		wrapped := make([]segment, 0, 2*len(segs))
		wrapped = append(wrapped, segs...)
		for _, s := range segs {
			s.start += L
			s.end += L
			wrapped = append(wrapped, s)
		}
		segs = wrapped
	} else {
		start = math.Max(0, start)
		end = math.Min(end, L)
	}
	if end-start < Eps {
		return &Path{}
	}

	nodes := []Node{PointNode(p.PointAt(start))}
	for _, s := range segs {
		if s.end <= start+Eps || s.length() <= 0 {
			continue
		}
		if s.start >= end-Eps {
			break
		}
		a := math.Max(start, s.start) - s.start
		b := math.Min(end, s.end) - s.start
		nodes = append(nodes, s.part(a, b))
	}
	if len(nodes) < 2 {
		return &Path{}
	}
	return NewPath(nodes, false)
}

// StartAt returns a closed path identical in shape but starting at pos.
// Open paths are returned unchanged.
func (p *Path) StartAt(pos float64) *Path {
	if !p.closed || p.Empty() {
		return p
	}
	sub := p.Subpath(pos, pos+p.Length())
	if sub.closed || sub.Empty() {
		return sub
	}
	return NewPath(sub.nodes, true)
}

// Reverse returns the path traversed backwards. Closed paths keep their
// starting point; applying Reverse twice yields an equal path.
func (p *Path) Reverse() *Path {
	n := len(p.nodes)
	if n == 0 {
		return p
	}
	rev := func(i int) Node {
		if p.nodes[i].IsArc() {
			return ArcNode(p.nodes[i].arc.Reverse())
		}
		return PointNode(p.nodes[i-1].End())
	}
	if !p.closed {
		out := make([]Node, 0, n)
		out = append(out, PointNode(p.nodes[n-1].End()))
		for i := n - 1; i >= 1; i-- {
			out = append(out, rev(i))
		}
		return NewPath(out, false)
	}

	first := p.nodes[0].pt
	out := []Node{PointNode(first)}
	if last := p.nodes[n-1].End(); !last.Near(first, Eps) {
		out = append(out, PointNode(last))
	}
	for i := n - 1; i >= 1; i-- {
		node := rev(i)
		// the last straight leg back to the start is implied by closure
		if i == 1 && !node.IsArc() {
			break
		}
		out = append(out, node)
	}
	return NewPath(out, true)
}

// Polygonize flattens the path into vertices, arcs approximated to tol. The
// closing segment of a closed path is implied, not repeated.
func (p *Path) Polygonize(tol float64) []v2.Vec {
	if len(p.nodes) == 0 {
		return nil
	}
	pts := []v2.Vec{p.nodes[0].pt.Vec}
	for _, node := range p.nodes[1:] {
		if node.IsArc() {
			pts = append(pts, node.arc.Polygonize(tol)...)
		} else {
			pts = append(pts, node.pt.Vec)
		}
	}
	if p.closed && len(pts) > 1 && pts[len(pts)-1].Sub(pts[0]).Length() < Eps {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// orientationScale converts coordinates to integer micrometre-ish units.
const orientationScale = 1000

// Orientation returns +1 for counter-clockwise, -1 for clockwise and 0 for
// a degenerate path. Open paths are treated as if closed.
func (p *Path) Orientation() int {
	pts := p.Polygonize(0.01)
	if len(pts) < 3 {
		return 0
	}
	var area int64
	q := make([][2]int64, len(pts))
	for i, v := range pts {
		q[i] = [2]int64{int64(math.Round(v.X * orientationScale)), int64(math.Round(v.Y * orientationScale))}
	}
	for i := range q {
		j := (i + 1) % len(q)
		area += q[i][0]*q[j][1] - q[j][0]*q[i][1]
	}
	switch {
	case area > 0:
		return 1
	case area < 0:
		return -1
	}
	return 0
}

// OffsetPoint moves the point at pos by dist along the right-hand normal,
// flipped for clockwise paths so positive dist always points away from the
// enclosed area.
func (p *Path) OffsetPoint(pos, dist float64) v2.Vec {
	o := p.Orientation()
	if o == 0 || !p.closed {
		o = 1
	}
	return p.offsetPoint(pos, dist, o)
}

func (p *Path) offsetPoint(pos, dist float64, orientation int) v2.Vec {
	pt := p.PointAt(pos)
	t := p.TangentAt(pos)
	n := v2.Vec{X: t.Y, Y: -t.X}
	return pt.Add(n.MulScalar(dist * float64(orientation)))
}

// Bounds returns the bounding box, including arc bulges.
func (p *Path) Bounds() sdf.Box2 {
	b := EmptyBox()
	for _, node := range p.nodes {
		if node.IsArc() {
			b = BoxUnion(b, node.arc.Bounds())
		} else {
			b = boxInclude(b, node.pt.Vec)
		}
	}
	return b
}

// ClosestPoint projects pt onto the path and returns the arc-length position
// of the projection and its distance from pt.
func (p *Path) ClosestPoint(pt v2.Vec) (pos, dist float64) {
	if len(p.nodes) == 0 {
		return 0, math.Inf(1)
	}
	pos, dist = 0, pt.Sub(p.nodes[0].pt.Vec).Length()
	consider := func(at, d float64) {
		if d < dist {
			pos, dist = at, d
		}
	}
	for _, s := range p.segs {
		l := s.length()
		if l <= 0 {
			continue
		}
		consider(s.end, pt.Sub(s.node.End().Vec).Length())
		if s.node.IsArc() {
			a := s.node.arc
			rel := pt.Sub(a.Center)
			if ok, swept := a.Contains(math.Atan2(rel.Y, rel.X)); ok {
				consider(s.start+math.Min(swept*a.Radius, l), math.Abs(rel.Length()-a.Radius))
			}
			continue
		}
		dir := s.node.pt.Sub(s.from.Vec)
		t := pt.Sub(s.from.Vec).Dot(dir) / (l * l)
		t = math.Max(0, math.Min(1, t))
		foot := s.from.Add(dir.MulScalar(t))
		consider(s.start+t*l, pt.Sub(foot).Length())
	}
	if p.closed && pos >= p.Length()-Eps {
		pos = 0
	}
	return pos, dist
}

// Join appends b to a as an open path. If b does not start where a ends, a
// straight connector is kept between them.
func Join(a, b *Path) *Path {
	switch {
	case a.Empty():
		return b
	case b.Empty():
		return a
	}
	nodes := a.Nodes()
	if a.closed {
		nodes = append(nodes, PointNode(a.nodes[0].pt))
	}
	tail := b.nodes
	if b.nodes[0].pt.Near(a.End(), Eps) {
		tail = tail[1:]
	}
	nodes = append(nodes, tail...)
	if b.closed {
		nodes = append(nodes, PointNode(b.nodes[0].pt))
	}
	return NewPath(nodes, false)
}

// Equal compares two paths node by node within tol.
func (p *Path) Equal(q *Path, tol float64) bool {
	if p.closed != q.closed || len(p.nodes) != len(q.nodes) {
		return false
	}
	for i := range p.nodes {
		a, b := p.nodes[i], q.nodes[i]
		if a.IsArc() != b.IsArc() {
			return false
		}
		if !a.IsArc() {
			if !a.pt.Near(b.pt, tol) {
				return false
			}
			continue
		}
		if !a.arc.Start.Near(b.arc.Start, tol) || !a.arc.End.Near(b.arc.End, tol) ||
			a.arc.Center.Sub(b.arc.Center).Length() > tol ||
			math.Abs(a.arc.Radius-b.arc.Radius) > tol ||
			math.Abs(a.arc.Span()-b.arc.Span()) > tol {
			return false
		}
	}
	return true
}
