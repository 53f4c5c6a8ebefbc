package schedule

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/toolpath"
)

var (
	ErrTabTooDeep   = errors.New("tab depth below final depth")
	ErrUndercut     = errors.New("wall profile undercut")
	ErrInvalidProps = errors.New("invalid operation properties")
)

const depthEps = 1e-9

func quantize(z float64) float64 {
	return math.Round(z*1e6) / 1e6
}

// Schedule computes the ordered Z slices for one operation. Major layers
// step down by the tool's maximum depth of cut; with a wall profile every
// major layer is followed by the sublayers that bring the wall to its
// profile, ordered bottom-up.
func Schedule(machine MachineParams, props OperationProps, tool *toolpath.Tool, hasTabs bool) ([]LayerInfo, error) {
	if tool == nil || tool.MaxDoc <= 0 {
		return nil, fmt.Errorf("max depth of cut must be positive: %w", ErrInvalidProps)
	}
	if props.StartDepth <= props.Depth {
		return nil, fmt.Errorf("start depth %g not above depth %g: %w", props.StartDepth, props.Depth, ErrInvalidProps)
	}
	if machine.SafeZ < props.StartDepth {
		return nil, fmt.Errorf("safe Z %g below start depth %g: %w", machine.SafeZ, props.StartDepth, ErrInvalidProps)
	}
	tabDepth := props.EffectiveTabDepth()
	if tabDepth < props.Depth-depthEps {
		return nil, fmt.Errorf("tab depth %g, depth %g: %w", tabDepth, props.Depth, ErrTabTooDeep)
	}
	hasTabs = hasTabs && tabDepth > props.Depth+depthEps

	total := props.StartDepth - props.Depth
	offsetAt := func(z float64) (float64, error) {
		if props.WallProfile == nil {
			return -props.Margin, nil
		}
		o, err := props.WallProfile.Offset(props.StartDepth-z, total)
		if err != nil {
			return 0, fmt.Errorf("wall profile at z=%g: %w", z, err)
		}
		return o - props.Margin, nil
	}

	var majors []LayerInfo
	seenFirst := false
	prev := props.StartDepth
	for i := 0; prev > props.Depth+depthEps; i++ {
		z := quantize(math.Max(props.Depth, props.StartDepth-float64(i+1)*tool.MaxDoc))
		top, err := offsetAt(prev)
		if err != nil {
			return nil, err
		}
		bottom, err := offsetAt(z)
		if err != nil {
			return nil, err
		}
		if bottom > top+depthEps {
			return nil, fmt.Errorf("offset grows from %g to %g between z=%g and z=%g: %w", top, bottom, prev, z, ErrUndercut)
		}
		status := TabsAbove
		if hasTabs && z < tabDepth-depthEps {
			status = TabsBelow
			if !seenFirst {
				status, seenFirst = TabsFirst, true
			}
		}
		majors = append(majors, LayerInfo{
			PrevDepth: prev,
			Depth:     z,
			Offsets:   OffsetRange{Start: top, End: bottom},
			TabStatus: status,
		})
		prev = z
	}

	if props.WallProfile == nil || props.SublayerThickness <= 0 {
		logging.Logger().Debug("scheduled layers", "majors", len(majors))
		return majors, nil
	}

	subs := make([][]LayerInfo, len(majors))
	count := 0
	for i := len(majors) - 1; i >= 0; i-- {
		s, err := sublayers(majors[i], props, tool, hasTabs, tabDepth, offsetAt)
		if err != nil {
			return nil, err
		}
		subs[i] = s
		count += len(s)
	}
	out := make([]LayerInfo, 0, len(majors)+count)
	for i, m := range majors {
		out = append(out, m)
		out = append(out, subs[i]...)
	}
	logging.Logger().Debug("scheduled layers", "majors", len(majors), "sublayers", count)
	return out, nil
}

// sublayers walks a major layer's span bottom-up in SublayerThickness bands
// and emits a sublayer whenever the wall has drifted more than the offset
// tolerance from the last cut offset.
func sublayers(major LayerInfo, props OperationProps, tool *toolpath.Tool, hasTabs bool, tabDepth float64,
	offsetAt func(float64) (float64, error)) ([]LayerInfo, error) {
	top, bottom := major.PrevDepth, major.Depth
	ref, err := offsetAt(bottom)
	if err != nil {
		return nil, err
	}
	var out []LayerInfo
	for k := 1; ; k++ {
		z := quantize(bottom + float64(k)*props.SublayerThickness)
		if z >= top-depthEps {
			break
		}
		o, err := offsetAt(z)
		if err != nil {
			return nil, err
		}
		if o < ref-depthEps {
			return nil, fmt.Errorf("offset %g at z=%g below %g further down: %w", o, z, ref, ErrUndercut)
		}
		if o-ref <= props.OffsetTolerance {
			continue
		}
		status := TabsAbove
		if hasTabs && z < tabDepth-depthEps {
			status = TabsBelow
		}
		out = append(out, LayerInfo{
			PrevDepth:  top,
			Depth:      z,
			Offsets:    OffsetRange{Start: ref, End: o, Increment: tool.StepoverDistance()},
			IsSublayer: true,
			TabStatus:  status,
		})
		ref = o
	}
	return out, nil
}
