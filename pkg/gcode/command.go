package gcode

import (
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind is the type of a motion command.
type Kind int

const (
	KindRapid Kind = iota
	KindLinear
	KindArcCW
	KindArcCCW
	KindDwell
	KindSpindleOn
	KindSpindleOff
	KindComment
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindRapid:
		return "rapid"
	case KindLinear:
		return "linear"
	case KindArcCW:
		return "arc-cw"
	case KindArcCCW:
		return "arc-ccw"
	case KindDwell:
		return "dwell"
	case KindSpindleOn:
		return "spindle-on"
	case KindSpindleOff:
		return "spindle-off"
	case KindComment:
		return "comment"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Command is one motion command. Moves carry absolute targets, where a NaN
// coordinate means the axis does not move. Arcs carry their absolute center
// and the writer derives I and J from the position it last emitted.
type Command struct {
	Kind   Kind
	To     v3.Vec
	Center v2.Vec
	Feed   float64 // linear and arc moves
	Value  float64 // dwell seconds or spindle speed
	Text   string  // comment
}

// IsMove reports whether the command moves the tool.
func (c Command) IsMove() bool {
	return c.Kind <= KindArcCCW
}

// IsArc reports whether the command is a circular move.
func (c Command) IsArc() bool {
	return c.Kind == KindArcCW || c.Kind == KindArcCCW
}

// Rapid moves at maximum speed.
func Rapid(to v3.Vec) Command { return Command{Kind: KindRapid, To: to} }

// Linear feeds in a straight line.
func Linear(to v3.Vec, feed float64) Command {
	return Command{Kind: KindLinear, To: to, Feed: feed}
}

// Arc feeds around center to to. Any change in Z is spread along the arc.
func Arc(to v3.Vec, center v2.Vec, cw bool, feed float64) Command {
	k := KindArcCCW
	if cw {
		k = KindArcCW
	}
	return Command{Kind: k, To: to, Center: center, Feed: feed}
}

// Dwell pauses for the given number of seconds.
func Dwell(seconds float64) Command { return Command{Kind: KindDwell, Value: seconds} }

// SpindleOn starts the spindle clockwise at rpm.
func SpindleOn(rpm float64) Command { return Command{Kind: KindSpindleOn, Value: rpm} }

// SpindleOff stops the spindle.
func SpindleOff() Command { return Command{Kind: KindSpindleOff} }

// Comment is copied into the program as a comment line.
func Comment(text string) Command { return Command{Kind: KindComment, Text: text} }

// End ends the program.
func End() Command { return Command{Kind: KindEnd} }

// Sweep returns the signed angle an arc command sweeps when it starts at
// from. Positive is counter-clockwise.
func (c Command) Sweep(from v3.Vec) float64 {
	return arcSpan(from, c.To, c.Center, c.Kind == KindArcCW)
}
