// Package tessellate flattens a motion command stream into polylines for
// previews. Consecutive moves of the same kind share one polyline, and arcs
// become chords within a given tolerance.
package tessellate

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/chazu/layercam/pkg/gcode"
	"github.com/chazu/layercam/pkg/geom"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind tags a polyline.
type Kind string

const (
	Rapid Kind = "rapid"
	Feed  Kind = "feed"
)

// Polyline is a run of moves of one kind.
type Polyline struct {
	Kind   Kind         `json:"kind"`
	Points [][3]float64 `json:"points"`
}

// Length returns the 3D length of the polyline.
func (p Polyline) Length() float64 {
	var l float64
	for i := 1; i < len(p.Points); i++ {
		a, b := p.Points[i-1], p.Points[i]
		l += math.Sqrt((b[0]-a[0])*(b[0]-a[0]) + (b[1]-a[1])*(b[1]-a[1]) + (b[2]-a[2])*(b[2]-a[2]))
	}
	return l
}

type tessellator struct {
	tol float64
	pos v3.Vec
	cur *Polyline
	out []Polyline
}

// Tessellate replays cmds from an unknown position. Moves are skipped until
// every axis has been set once.
func Tessellate(cmds []gcode.Command, tol float64) []Polyline {
	t := &tessellator{tol: tol, pos: v3.Vec{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}}
	for _, c := range cmds {
		t.command(c)
	}
	t.flush()
	return t.out
}

func known(v v3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z)
}

// merge keeps the axes of pos that to leaves unset.
func merge(pos, to v3.Vec) v3.Vec {
	if math.IsNaN(to.X) {
		to.X = pos.X
	}
	if math.IsNaN(to.Y) {
		to.Y = pos.Y
	}
	if math.IsNaN(to.Z) {
		to.Z = pos.Z
	}
	return to
}

func (t *tessellator) command(c gcode.Command) {
	if !c.IsMove() {
		return
	}
	to := merge(t.pos, c.To)
	if !known(t.pos) {
		t.pos = to
		return
	}
	kind := Feed
	if c.Kind == gcode.KindRapid {
		kind = Rapid
	}
	if t.cur == nil || t.cur.Kind != kind {
		t.flush()
		t.cur = &Polyline{Kind: kind}
		t.add(t.pos)
	}

	if c.IsArc() {
		from := t.pos
		rel := v2.Vec{X: from.X - c.Center.X, Y: from.Y - c.Center.Y}
		arc := geom.NewArc(c.Center, rel.Length(), math.Atan2(rel.Y, rel.X), c.Sweep(from))
		pts := arc.Polygonize(t.tol)
		for i, p := range pts[:len(pts)-1] {
			f := float64(i+1) / float64(len(pts))
			t.add(v3.Vec{X: p.X, Y: p.Y, Z: from.Z + (to.Z-from.Z)*f})
		}
	}
	t.add(to)
	t.pos = to
}

func (t *tessellator) add(v v3.Vec) {
	t.cur.Points = append(t.cur.Points, [3]float64{v.X, v.Y, v.Z})
}

func (t *tessellator) flush() {
	if t.cur != nil && len(t.cur.Points) > 1 {
		t.out = append(t.out, *t.cur)
	}
	t.cur = nil
}

// Lengths sums the polyline lengths per kind.
func Lengths(lines []Polyline) (feed, rapid float64) {
	for _, l := range lines {
		if l.Kind == Rapid {
			rapid += l.Length()
		} else {
			feed += l.Length()
		}
	}
	return feed, rapid
}

// Bounds returns the box around every point.
func Bounds(lines []Polyline) sdf.Box3 {
	inf := math.Inf(1)
	b := sdf.Box3{Min: v3.Vec{X: inf, Y: inf, Z: inf}, Max: v3.Vec{X: -inf, Y: -inf, Z: -inf}}
	for _, l := range lines {
		for _, p := range l.Points {
			b.Min = v3.Vec{X: math.Min(b.Min.X, p[0]), Y: math.Min(b.Min.Y, p[1]), Z: math.Min(b.Min.Z, p[2])}
			b.Max = v3.Vec{X: math.Max(b.Max.X, p[0]), Y: math.Max(b.Max.Y, p[1]), Z: math.Max(b.Max.Z, p[2])}
		}
	}
	return b
}

// WriteJSON encodes lines as a JSON array.
func WriteJSON(w io.Writer, lines []Polyline) error {
	if lines == nil {
		lines = []Polyline{}
	}
	if err := json.NewEncoder(w).Encode(lines); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

// WriteDXF saves the feed moves, projected onto XY, as a DXF drawing.
func WriteDXF(path string, lines []Polyline) error {
	d := render.NewDXF(path)
	for _, l := range lines {
		if l.Kind != Feed {
			continue
		}
		for i := 1; i < len(l.Points); i++ {
			a, b := l.Points[i-1], l.Points[i]
			if a[0] == b[0] && a[1] == b[1] {
				continue
			}
			d.Line(&sdf.Line2{v2.Vec{X: a[0], Y: a[1]}, v2.Vec{X: b[0], Y: b[1]}})
		}
	}
	if err := d.Save(); err != nil {
		return fmt.Errorf("save dxf: %w", err)
	}
	return nil
}
