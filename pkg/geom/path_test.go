package geom

import (
	"errors"
	"math"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(size float64) *Path {
	return FromPoints(true,
		v2.Vec{X: 0, Y: 0},
		v2.Vec{X: size, Y: 0},
		v2.Vec{X: size, Y: size},
		v2.Vec{X: 0, Y: size},
	)
}

// dShape is a closed path with a half-circle bulge on its right side.
func dShape(t *testing.T) *Path {
	t.Helper()
	arc, err := ArcThrough(Pt(10, 0), Pt(10, 10), v2.Vec{X: 10, Y: 5}, true)
	require.NoError(t, err)
	return NewPath([]Node{
		PointNode(Pt(0, 0)),
		PointNode(Pt(10, 0)),
		ArcNode(arc),
		PointNode(Pt(0, 10)),
	}, true)
}

func openZigzag() *Path {
	return FromPoints(false,
		v2.Vec{X: 0, Y: 0},
		v2.Vec{X: 3, Y: 4},
		v2.Vec{X: 6, Y: 0},
		v2.Vec{X: 9, Y: 4},
	)
}

func TestLengths(t *testing.T) {
	p := square(10)
	assert.InDelta(t, 40, p.Length(), 1e-12)
	assert.Equal(t, []float64{0, 10, 20, 30, 40}, p.Lengths())

	d := dShape(t)
	assert.InDelta(t, 30+5*math.Pi, d.Length(), 1e-9)

	for _, path := range []*Path{p, d, openZigzag()} {
		ls := path.Lengths()
		for i := 1; i < len(ls); i++ {
			if ls[i] < ls[i-1] {
				t.Fatalf("lengths not monotone at %d: %v", i, ls)
			}
		}
		assert.InDelta(t, path.Length(), ls[len(ls)-1], 1e-12)
	}
}

func TestClosedDropsRepeatedStart(t *testing.T) {
	p := FromPoints(true,
		v2.Vec{X: 0, Y: 0},
		v2.Vec{X: 1, Y: 0},
		v2.Vec{X: 1, Y: 1},
		v2.Vec{X: 0, Y: 0},
	)
	assert.Equal(t, 3, p.Len())
}

func TestReverseInvolution(t *testing.T) {
	tests := []struct {
		name string
		path *Path
	}{
		{"closed square", square(10)},
		{"open zigzag", openZigzag()},
		{"closed with arc", dShape(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.path.Reverse()
			assert.InDelta(t, tt.path.Length(), r.Length(), 1e-9)
			assert.True(t, r.Start().Near(tt.path.End(), 1e-12) || tt.path.Closed())
			if got := r.Reverse(); !got.Equal(tt.path, 1e-9) {
				t.Errorf("Reverse().Reverse() differs from original")
			}
		})
	}
}

func TestReverseClosedKeepsStart(t *testing.T) {
	r := square(10).Reverse()
	require.Equal(t, 4, r.Len())
	assert.True(t, r.Start().Eq(Pt(0, 0)))
	assert.True(t, r.Node(1).End().Eq(Pt(0, 10)))
	assert.Equal(t, -1, r.Orientation())
}

func TestSubpathFullRange(t *testing.T) {
	for _, p := range []*Path{square(10), openZigzag(), dShape(t)} {
		got := p.Subpath(0, p.Length())
		assert.InDelta(t, p.Length(), got.Length(), 1e-9)
		assert.True(t, got.Equal(p, 1e-9), "subpath(0, L) should reproduce the path")
	}
}

func TestSubpathAcrossSeam(t *testing.T) {
	p := square(10)
	s := p.Subpath(35, 5)
	require.False(t, s.Empty())
	assert.False(t, s.Closed())
	assert.InDelta(t, 10, s.Length(), 1e-9)
	assert.InDelta(t, 0, s.Start().X, 1e-9)
	assert.InDelta(t, 5, s.Start().Y, 1e-9)
	assert.InDelta(t, 5, s.End().X, 1e-9)
	assert.InDelta(t, 0, s.End().Y, 1e-9)
}

func TestSubpathSplitsArc(t *testing.T) {
	d := dShape(t)
	half := 5 * math.Pi / 2
	s := d.Subpath(10, 10+half)
	require.Equal(t, 2, s.Len())
	require.True(t, s.Node(1).IsArc())
	assert.InDelta(t, math.Pi/2, s.Node(1).Arc().Span(), 1e-9)
	assert.InDelta(t, 15, s.End().X, 1e-9)
	assert.InDelta(t, 5, s.End().Y, 1e-9)
}

// roundedSquare is a 10x10 square grown by 1 with round corners, the way an
// outside tool-center path comes back from the planner.
func roundedSquare() *Path {
	return NewPath([]Node{
		PointNode(Pt(0, -1)),
		PointNode(Pt(10, -1)),
		ArcNode(NewArc(v2.Vec{X: 10, Y: 0}, 1, -math.Pi/2, math.Pi/2)),
		PointNode(Pt(11, 10)),
		ArcNode(NewArc(v2.Vec{X: 10, Y: 10}, 1, 0, math.Pi/2)),
		PointNode(Pt(0, 11)),
		ArcNode(NewArc(v2.Vec{X: 0, Y: 10}, 1, math.Pi/2, math.Pi/2)),
		PointNode(Pt(-1, 0)),
		ArcNode(NewArc(v2.Vec{X: 0, Y: 0}, 1, math.Pi, math.Pi/2)),
	}, true)
}

func TestStartAtKeepsWholeLoop(t *testing.T) {
	p := roundedSquare()
	L := p.Length()
	require.InDelta(t, 40+2*math.Pi, L, 1e-9)

	positions := []float64{5, 5 + math.Pi/2, 6.5707963267948966, L - 1e-12}
	for k := 0; k < 200; k++ {
		positions = append(positions, L*float64(k)/200)
	}
	for _, pos := range positions {
		s := p.StartAt(pos)
		require.False(t, s.Empty(), "StartAt(%v) lost the path", pos)
		assert.True(t, s.Closed())
		assert.InDelta(t, L, s.Length(), 1e-6, "StartAt(%v)", pos)
		assert.True(t, s.Start().Near(p.PointAt(pos), 1e-6), "StartAt(%v) starts at %v", pos, s.Start())
	}
}

func TestSubpathWholeLoopFromMidEdge(t *testing.T) {
	p := roundedSquare()
	L := p.Length()
	start := 5 + math.Pi/2
	s := p.Subpath(start, start+L)
	require.False(t, s.Empty())
	assert.False(t, s.Closed())
	assert.InDelta(t, L, s.Length(), 1e-6)
	assert.True(t, s.End().Near(s.Start(), 1e-6))
}

func TestSegmentsCachedWithLengths(t *testing.T) {
	for _, p := range []*Path{square(10), openZigzag(), dShape(t), roundedSquare()} {
		require.Len(t, p.segs, len(p.lengths)-1)
		for i, s := range p.segs {
			assert.Equal(t, p.lengths[i+1], s.end)
			assert.True(t, p.PointAt(s.end).Near(s.node.End(), 1e-9) || (p.closed && i == len(p.segs)-1))
		}
	}
	assert.Empty(t, (&Path{}).segs)
}

func TestSubpathCollapses(t *testing.T) {
	assert.True(t, square(10).Subpath(3, 3).Empty())
	assert.True(t, openZigzag().Subpath(20, 30).Empty())
}

func TestPointAtWraps(t *testing.T) {
	p := square(10)
	got := p.PointAt(45)
	assert.InDelta(t, 5, got.X, 1e-12)
	assert.InDelta(t, 0, got.Y, 1e-12)

	open := openZigzag()
	end := open.PointAt(100)
	assert.True(t, end.Eq(Pt(9, 4)))
}

func TestOrientation(t *testing.T) {
	assert.Equal(t, 1, square(10).Orientation())
	assert.Equal(t, -1, square(10).Reverse().Orientation())
	assert.Equal(t, 1, dShape(t).Orientation())
	line := FromPoints(true, v2.Vec{X: 0, Y: 0}, v2.Vec{X: 1, Y: 1}, v2.Vec{X: 2, Y: 2})
	assert.Equal(t, 0, line.Orientation())
}

func TestOffsetPointPointsOutward(t *testing.T) {
	ccw := square(10)
	got := ccw.OffsetPoint(5, 1)
	assert.InDelta(t, 5, got.X, 1e-12)
	assert.InDelta(t, -1, got.Y, 1e-12)

	cw := ccw.Reverse()
	got = cw.OffsetPoint(5, 1)
	assert.InDelta(t, -1, got.X, 1e-12)
	assert.InDelta(t, 5, got.Y, 1e-12)
}

func TestBoundsIncludesArcBulge(t *testing.T) {
	b := dShape(t).Bounds()
	assert.InDelta(t, 0, b.Min.X, 1e-12)
	assert.InDelta(t, 0, b.Min.Y, 1e-12)
	assert.InDelta(t, 15, b.Max.X, 1e-9)
	assert.InDelta(t, 10, b.Max.Y, 1e-12)

	semi := NewArc(v2.Vec{}, 1, 0, math.Pi)
	ab := semi.Bounds()
	assert.InDelta(t, -1, ab.Min.X, 1e-12)
	assert.InDelta(t, 1, ab.Max.Y, 1e-12)
}

func TestClosestPoint(t *testing.T) {
	p := square(10)
	pos, dist := p.ClosestPoint(v2.Vec{X: 5, Y: -2})
	assert.InDelta(t, 5, pos, 1e-12)
	assert.InDelta(t, 2, dist, 1e-12)

	pos, dist = p.ClosestPoint(v2.Vec{X: 12, Y: 5})
	assert.InDelta(t, 15, pos, 1e-12)
	assert.InDelta(t, 2, dist, 1e-12)

	d := dShape(t)
	pos, dist = d.ClosestPoint(v2.Vec{X: 17, Y: 5})
	assert.InDelta(t, 10+5*math.Pi/2, pos, 1e-9)
	assert.InDelta(t, 2, dist, 1e-9)
}

func TestArcThrough(t *testing.T) {
	_, err := ArcThrough(Pt(1, 0), Pt(0, 2), v2.Vec{}, true)
	if !errors.Is(err, ErrArcEndpoints) {
		t.Fatalf("ArcThrough() error = %v, want ErrArcEndpoints", err)
	}

	a, err := ArcThrough(Pt(1, 0), Pt(0, 1.00001), v2.Vec{}, true)
	require.NoError(t, err)
	assert.InDelta(t, 1, a.End.Y, 1e-12)
	assert.InDelta(t, math.Pi/2, a.Span(), 1e-9)

	cw, err := ArcThrough(Pt(1, 0), Pt(0, 1), v2.Vec{}, false)
	require.NoError(t, err)
	assert.InDelta(t, -3*math.Pi/2, cw.Span(), 1e-9)

	full, err := ArcThrough(Pt(1, 0), Pt(1, 0), v2.Vec{}, true)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Pi, full.Span(), 1e-12)
	assert.InDelta(t, 2*math.Pi, full.Length(), 1e-12)
}

func TestArcSubAndReverse(t *testing.T) {
	a := NewArc(v2.Vec{}, 2, 0, math.Pi)
	assert.InDelta(t, 2*math.Pi, a.Length(), 1e-12)

	s := a.Sub(0.5, 1)
	assert.InDelta(t, math.Pi/2, s.StartAngle, 1e-12)
	assert.True(t, s.End.Eq(a.End))

	r := a.Reverse()
	assert.True(t, r.Start.Eq(a.End))
	assert.InDelta(t, -math.Pi, r.Span(), 1e-12)
	assert.False(t, r.CCW())
}

func TestJoin(t *testing.T) {
	a := FromPoints(false, v2.Vec{X: 0, Y: 0}, v2.Vec{X: 5, Y: 0})
	b := FromPoints(false, v2.Vec{X: 5, Y: 0}, v2.Vec{X: 5, Y: 5})
	j := Join(a, b)
	assert.Equal(t, 3, j.Len())
	assert.InDelta(t, 10, j.Length(), 1e-12)

	gap := FromPoints(false, v2.Vec{X: 6, Y: 0}, v2.Vec{X: 6, Y: 5})
	assert.Equal(t, 4, Join(a, gap).Len())
}

func TestStartAt(t *testing.T) {
	p := square(10).StartAt(5)
	assert.True(t, p.Closed())
	assert.Equal(t, 5, p.Len())
	assert.True(t, p.Start().Eq(Pt(5, 0)))
	assert.InDelta(t, 40, p.Length(), 1e-9)
	assert.Equal(t, 1, p.Orientation())

	open := openZigzag()
	assert.Same(t, open, open.StartAt(3))
}

func TestPolygonize(t *testing.T) {
	pts := dShape(t).Polygonize(0.01)
	assert.Greater(t, len(pts), 10)
	for _, v := range pts {
		assert.LessOrEqual(t, v.X, 15+1e-9)
	}
}
