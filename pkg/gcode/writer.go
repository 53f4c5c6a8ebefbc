package gcode

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Units selects the unit system announced in the setup block. Coordinates
// are written as given; the writer does not convert.
type Units int

const (
	Millimeters Units = iota
	Inches
)

// Dialect captures controller quirks.
type Dialect struct {
	Units Units
	// SplitLargeArcs splits arcs spanning 270 degrees or more into two
	// halves for controllers that mishandle near-full circles.
	SplitLargeArcs bool
}

func (d Dialect) decimals() int {
	if d.Units == Inches {
		return 4
	}
	return 3
}

// largeArc is the span from which arcs are split.
const largeArc = 1.5 * math.Pi

// Writer renders commands as G-code lines. The first write error is kept
// and returned by every later call.
type Writer struct {
	out     io.Writer
	dialect Dialect

	pos   v3.Vec
	axes  [3]string
	known [3]bool
	feed  string

	lines int
	err   error
}

// NewWriter returns a Writer emitting to out.
func NewWriter(out io.Writer, d Dialect) *Writer {
	return &Writer{out: out, dialect: d}
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int { return w.lines }

// Begin writes the setup block: XY plane, units, absolute distances.
func (w *Writer) Begin() error {
	units := "G21"
	if w.dialect.Units == Inches {
		units = "G20"
	}
	w.line("G17")
	w.line(units)
	w.line("G90")
	return w.err
}

// Write renders cmds in order.
func (w *Writer) Write(cmds ...Command) error {
	for _, c := range cmds {
		if w.err != nil {
			break
		}
		switch c.Kind {
		case KindRapid, KindLinear:
			w.move(c)
		case KindArcCW, KindArcCCW:
			w.arc(c)
		case KindDwell:
			w.line("G4", "P"+w.num(c.Value))
		case KindSpindleOn:
			w.line("M3", "S"+format(c.Value, 0))
		case KindSpindleOff:
			w.line("M5")
		case KindComment:
			w.line("(" + strings.NewReplacer("(", "[", ")", "]", "\n", " ").Replace(c.Text) + ")")
		case KindEnd:
			w.line("M2")
		default:
			w.err = fmt.Errorf("unknown command kind %d", c.Kind)
		}
	}
	return w.err
}

// WriteProgram writes the setup block followed by cmds.
func WriteProgram(out io.Writer, d Dialect, cmds []Command) error {
	w := NewWriter(out, d)
	if err := w.Begin(); err != nil {
		return err
	}
	return w.Write(cmds...)
}

func (w *Writer) line(words ...string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.out, strings.Join(words, " ")+"\n")
	if w.err == nil {
		w.lines++
	}
}

func (w *Writer) num(v float64) string {
	return format(v, w.dialect.decimals())
}

// axisWords returns the words for the axes whose rendering differs from
// the last emitted one, and records to as the new position. A NaN axis is
// left where it is.
func (w *Writer) axisWords(to v3.Vec, always [3]bool) []string {
	var words []string
	pos := [3]*float64{&w.pos.X, &w.pos.Y, &w.pos.Z}
	for i, v := range [3]float64{to.X, to.Y, to.Z} {
		if math.IsNaN(v) {
			continue
		}
		s := w.num(v)
		if always[i] || !w.known[i] || w.axes[i] != s {
			words = append(words, string("XYZ"[i])+s)
		}
		w.axes[i], w.known[i] = s, true
		*pos[i] = v
	}
	return words
}

func (w *Writer) setFeed(f float64) {
	if f <= 0 {
		return
	}
	if s := w.num(f); s != w.feed {
		w.feed = s
		w.line("F" + s)
	}
}

func (w *Writer) move(c Command) {
	words := w.axisWords(c.To, [3]bool{})
	if len(words) == 0 {
		return
	}
	if c.Kind == KindLinear {
		w.setFeed(c.Feed)
		w.line(append([]string{"G1"}, words...)...)
		return
	}
	w.line(append([]string{"G0"}, words...)...)
}

func (w *Writer) arc(c Command) {
	cw := c.Kind == KindArcCW
	span := arcSpan(w.pos, c.To, c.Center, cw)
	if !w.dialect.SplitLargeArcs || math.Abs(span) < largeArc-1e-9 {
		w.arcPiece(c.To, c.Center, cw, c.Feed)
		return
	}
	from := v2.Vec{X: w.pos.X, Y: w.pos.Y}.Sub(c.Center)
	a := math.Atan2(from.Y, from.X) + span/2
	r := from.Length()
	mid := v3.Vec{
		X: c.Center.X + r*math.Cos(a),
		Y: c.Center.Y + r*math.Sin(a),
		Z: (w.pos.Z + c.To.Z) / 2,
	}
	w.arcPiece(mid, c.Center, cw, c.Feed)
	w.arcPiece(c.To, c.Center, cw, c.Feed)
}

func (w *Writer) arcPiece(to v3.Vec, center v2.Vec, cw bool, feed float64) {
	g := "G3"
	if cw {
		g = "G2"
	}
	i, j := center.X-w.pos.X, center.Y-w.pos.Y
	w.setFeed(feed)
	words := w.axisWords(to, [3]bool{true, true, false})
	words = append(words, "I"+w.num(i), "J"+w.num(j))
	w.line(append([]string{g}, words...)...)
}

// arcSpan returns the signed sweep from -> to around center. Coincident
// endpoints describe a full circle.
func arcSpan(from, to v3.Vec, center v2.Vec, cw bool) float64 {
	a0 := math.Atan2(from.Y-center.Y, from.X-center.X)
	a1 := math.Atan2(to.Y-center.Y, to.X-center.X)
	if math.Hypot(to.X-from.X, to.Y-from.Y) < 1e-9 {
		if cw {
			return -2 * math.Pi
		}
		return 2 * math.Pi
	}
	d := math.Mod(a1-a0, 2*math.Pi)
	if cw {
		if d >= 0 {
			d -= 2 * math.Pi
		}
		return d
	}
	if d <= 0 {
		d += 2 * math.Pi
	}
	return d
}

// format rounds v to decimals places and strips trailing zeros.
func format(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}
