package toolpath

import (
	"math"

	"github.com/chazu/layercam/pkg/geom"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/deadsy/sdfx/sdf"
)

// helixShrink is the ratio between successive radii tried by
// FindHelicalEntry.
const helixShrink = 0.75

// FindHelicalEntry looks for the largest helix, starting at one tool
// diameter and shrinking down to the tool's minimum helix radius, whose
// circle touches the start of path from the inside and stays within one of
// the candidate boundaries. It reports false when nothing fits.
func FindHelicalEntry(path *geom.Path, candidates []*geom.Path, tool *Tool) (Entry, bool) {
	if len(candidates) == 0 || !path.Closed() || path.Empty() {
		return Entry{}, false
	}
	o := path.Orientation()
	if o == 0 {
		return Entry{}, false
	}
	fields := make([]sdf.SDF2, 0, len(candidates))
	for _, c := range candidates {
		s, err := sdf.Polygon2D(c.Polygonize(0.01))
		if err != nil {
			logging.Logger().Debug("skipping helix candidate", "error", err)
			continue
		}
		fields = append(fields, s)
	}

	start := path.Start()
	minR := tool.MinHelixRadius()
	for r := tool.Diameter; r >= minR-geom.Eps; r *= helixShrink {
		// A negative offset moves towards the enclosed side.
		center := path.OffsetPoint(0, -r)
		for _, f := range fields {
			if f.Evaluate(center) <= -r+1e-6 {
				angle := math.Atan2(start.Y-center.Y, start.X-center.X)
				return HelicalEntry(center, r, angle, o < 0), true
			}
		}
	}
	return Entry{}, false
}
