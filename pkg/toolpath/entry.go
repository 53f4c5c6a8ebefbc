package toolpath

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// EntryKind selects how the tool gets into material.
type EntryKind int

const (
	EntryNone EntryKind = iota
	EntryPlunge
	EntryHelix
)

func (k EntryKind) String() string {
	switch k {
	case EntryPlunge:
		return "plunge"
	case EntryHelix:
		return "helix"
	default:
		return "none"
	}
}

// Entry is an entry descriptor. For helices Point is the first contact
// point, derived from the circle when the descriptor is built.
type Entry struct {
	Kind   EntryKind
	Point  v2.Vec
	Center v2.Vec
	Radius float64
	Angle  float64
	CW     bool
}

// PlungeEntry descends straight down at p.
func PlungeEntry(p v2.Vec) Entry {
	return Entry{Kind: EntryPlunge, Point: p}
}

// HelicalEntry descends on a circle of the given radius around center,
// touching down at angle (radians).
func HelicalEntry(center v2.Vec, radius, angle float64, cw bool) Entry {
	return Entry{
		Kind:   EntryHelix,
		Center: center,
		Radius: radius,
		Angle:  angle,
		CW:     cw,
		Point: v2.Vec{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		},
	}
}
