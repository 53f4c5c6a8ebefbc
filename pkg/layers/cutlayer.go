package layers

import (
	"github.com/chazu/layercam/pkg/schedule"
	"github.com/chazu/layercam/pkg/toolpath"
	"github.com/deadsy/sdfx/sdf"
)

// CutLayer holds the toolpaths of one region at one scheduled depth and
// offset.
type CutLayer struct {
	PrevDepth  float64
	Depth      float64
	TabStatus  schedule.TabStatus
	IsSublayer bool
	Items      []toolpath.Item
	// ForceJoin lets the synthesizer feed straight from the previous layer
	// instead of retracting.
	ForceJoin bool
	Bounds    sdf.Box2

	info   int // index of the LayerInfo this layer realizes
	region int // index of the top-level item within the planner output
	pass   int // index into the LayerInfo's offset values
}

// Toolpaths flattens the layer's items.
func (l *CutLayer) Toolpaths() []*toolpath.Toolpath {
	var out []*toolpath.Toolpath
	for _, it := range l.Items {
		out = append(out, it.Flatten()...)
	}
	return out
}
