package profile

import (
	"math"

	"github.com/chazu/layercam/pkg/schedule"
)

var (
	_ schedule.WallProfile = Draft{}
	_ schedule.WallProfile = Chamfer{}
	_ schedule.WallProfile = Roundover{}
	_ schedule.WallProfile = (*Script)(nil)
)

// Draft tapers the wall by Angle degrees from vertical, widest at the top.
type Draft struct {
	Angle float64
}

// Offset implements schedule.WallProfile.
func (d Draft) Offset(depth, total float64) (float64, error) {
	return (total - depth) * math.Tan(d.Angle*math.Pi/180), nil
}

// Chamfer cuts a 45° bevel Width wide at the top edge.
type Chamfer struct {
	Width float64
}

// Offset implements schedule.WallProfile.
func (c Chamfer) Offset(depth, total float64) (float64, error) {
	return math.Max(0, c.Width-depth), nil
}

// Roundover rounds the top edge with a quarter circle of Radius.
type Roundover struct {
	Radius float64
}

// Offset implements schedule.WallProfile.
func (r Roundover) Offset(depth, total float64) (float64, error) {
	if depth >= r.Radius {
		return 0, nil
	}
	d := r.Radius - depth
	return r.Radius - math.Sqrt(r.Radius*r.Radius-d*d), nil
}
