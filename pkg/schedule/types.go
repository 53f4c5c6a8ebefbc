package schedule

import "math"

// MachineParams are the clearance heights of the machine setup.
type MachineParams struct {
	SafeZ        float64 // rapids above this are always clear
	SemiSafeZ    float64 // rapids above this clear the stock, not the clamps
	TabClearance float64 // minimum clearance above an established tab
}

// WallProfile maps depth below the operation's start (positive) and the
// operation's total depth to a lateral offset into the wall. The offset
// must not grow with depth.
type WallProfile interface {
	Offset(depth, total float64) (float64, error)
}

// WallProfileFunc adapts a plain function to WallProfile.
type WallProfileFunc func(depth, total float64) (float64, error)

// Offset implements WallProfile.
func (f WallProfileFunc) Offset(depth, total float64) (float64, error) {
	return f(depth, total)
}

// OperationProps describes one depth-layered pass.
type OperationProps struct {
	Depth      float64  // final Z, below StartDepth
	StartDepth float64  // Z of the stock top for this operation
	TabDepth   *float64 // nil: no tabs

	Margin            float64
	WallProfile       WallProfile
	SublayerThickness float64
	OffsetTolerance   float64

	AllowHelicalEntry bool
}

// EffectiveTabDepth returns TabDepth, or Depth when there are no tabs.
func (p OperationProps) EffectiveTabDepth() float64 {
	if p.TabDepth == nil {
		return p.Depth
	}
	return *p.TabDepth
}

// TabStatus records how a layer relates to the tab depth.
type TabStatus int

const (
	TabsAbove TabStatus = iota // layer does not reach tab depth
	TabsFirst                  // first major layer cutting below tab depth
	TabsBelow                  // tab material already established
)

func (s TabStatus) String() string {
	switch s {
	case TabsAbove:
		return "above"
	case TabsFirst:
		return "first"
	case TabsBelow:
		return "below"
	default:
		return "unknown"
	}
}

// OffsetRange is a sequence of lateral offsets for one depth slice.
type OffsetRange struct {
	Start, End float64
	Increment  float64
}

const offsetEps = 1e-9

// Values lists the offsets strictly after Start stepping towards End, always
// finishing exactly on End. With no increment, or Start equal to End, the
// result is just End.
func (r OffsetRange) Values() []float64 {
	span := r.End - r.Start
	if r.Increment <= 0 || math.Abs(span) < offsetEps {
		return []float64{r.End}
	}
	dir := 1.0
	if span < 0 {
		dir = -1
	}
	var out []float64
	for k := 1; ; k++ {
		v := r.Start + dir*float64(k)*r.Increment
		if (v-r.End)*dir >= -offsetEps {
			break
		}
		out = append(out, v)
	}
	return append(out, r.End)
}

// LayerInfo is one scheduled Z slice.
type LayerInfo struct {
	PrevDepth  float64
	Depth      float64
	Offsets    OffsetRange
	IsSublayer bool
	TabStatus  TabStatus
}
