package toolpath

import "math"

// Tool describes an end mill. Tools are built once and shared read-only by
// every toolpath and layer that uses them.
type Tool struct {
	Name     string
	Diameter float64
	HFeed    float64 // horizontal feed, units/min
	VFeed    float64 // vertical (plunge) feed, units/min
	MaxDoc   float64 // maximum depth of cut per pass
	Stepover float64 // fraction of Diameter between repasses
	Climb    bool

	MinHelixDiameter float64
	PlungeFeedRatio  float64 // applied to the first full-engagement descent
	RampSlope        float64 // horizontal travel per unit descent; 0 derives it from the feeds
}

// Slope returns the horizontal distance travelled per unit of descent when
// ramping or following a helix.
func (t *Tool) Slope() float64 {
	if t.RampSlope > 0 {
		return t.RampSlope
	}
	if t.VFeed <= 0 {
		return 1
	}
	return math.Max(1, t.HFeed/t.VFeed)
}

// MinHelixRadius is half the minimum helix diameter, never less than a
// tenth of the tool radius.
func (t *Tool) MinHelixRadius() float64 {
	return math.Max(t.MinHelixDiameter/2, t.Diameter/20)
}

// StepoverDistance is the lateral spacing between repasses.
func (t *Tool) StepoverDistance() float64 {
	return t.Stepover * t.Diameter
}
