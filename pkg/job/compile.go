package job

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/layercam/pkg/gcode"
	"github.com/chazu/layercam/pkg/geom"
	"github.com/chazu/layercam/pkg/layers"
	"github.com/chazu/layercam/pkg/logging"
	"github.com/chazu/layercam/pkg/planar"
	"github.com/chazu/layercam/pkg/planar/sdfx"
	"github.com/chazu/layercam/pkg/profile"
	"github.com/chazu/layercam/pkg/schedule"
	"github.com/chazu/layercam/pkg/toolpath"
)

// Plan is a compiled job.
type Plan struct {
	Machine schedule.MachineParams
	Dialect gcode.Dialect
	Spindle Spindle
	Tasks   []*Task
}

// Task is one operation ready to run. Tools are shared between tasks and
// must not be modified.
type Task struct {
	Name       string
	Tool       *toolpath.Tool
	Props      schedule.OperationProps
	Planner    planar.Planner
	Tabs       layers.TabSpec
	SpringPass bool
}

// Compile validates j and builds its Plan. Warnings are logged; any error
// finding fails compilation. All planners share one lock.
func Compile(j *Job) (*Plan, error) {
	res := Validate(j)
	for _, w := range res.Warnings {
		logging.Logger().Warn("job", "path", w.Path, "message", w.Message)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	p := &Plan{
		Machine: schedule.MachineParams{
			SafeZ:        j.Machine.SafeZ,
			SemiSafeZ:    j.Machine.SemiSafeZ,
			TabClearance: j.Machine.TabClearance,
		},
		Dialect: gcode.Dialect{SplitLargeArcs: j.Output.SplitLargeArcs},
		Spindle: j.Spindle,
	}
	if j.Units == "inch" {
		p.Dialect.Units = gcode.Inches
	}

	tools := make(map[string]*toolpath.Tool, len(j.Tools))
	for _, t := range j.Tools {
		tools[t.Name] = &toolpath.Tool{
			Name:             t.Name,
			Diameter:         t.Diameter,
			HFeed:            t.HFeed,
			VFeed:            t.VFeed,
			MaxDoc:           t.MaxDoc,
			Stepover:         t.Stepover,
			Climb:            t.Climb,
			MinHelixDiameter: t.MinHelixDiameter,
			PlungeFeedRatio:  t.PlungeFeedRatio,
			RampSlope:        t.RampSlope,
		}
	}

	var lock *planar.Serialized
	for i, op := range j.Operations {
		c, err := compileOperation(op, tools[op.Tool])
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		if lock == nil {
			lock = planar.Serialize(c.Planner)
			c.Planner = lock
		} else {
			c.Planner = lock.Share(c.Planner)
		}
		p.Tasks = append(p.Tasks, c)
	}
	return p, nil
}

func compileOperation(op Operation, tool *toolpath.Tool) (*Task, error) {
	side, _ := planar.ParseSide(op.Side)
	contours := make([]*geom.Path, len(op.Contours))
	for i, c := range op.Contours {
		contours[i] = c.Path()
	}

	var opts []sdfx.Option
	if op.Transform != nil {
		t := transformOf(*op.Transform)
		if op.Transform.Skin {
			opts = append(opts, sdfx.WithSkin(t))
		} else {
			opts = append(opts, sdfx.WithTransform(t))
		}
	}

	props := schedule.OperationProps{
		Depth:             op.Depth,
		StartDepth:        op.StartDepth,
		TabDepth:          op.TabDepth,
		Margin:            op.Margin,
		SublayerThickness: op.SublayerThickness,
		OffsetTolerance:   op.OffsetTolerance,
		AllowHelicalEntry: op.HelicalEntry,
	}
	if op.Wall != nil {
		w, err := wallProfile(*op.Wall)
		if err != nil {
			return nil, err
		}
		props.WallProfile = w
	}

	c := &Task{
		Name:       op.Name,
		Tool:       tool,
		Props:      props,
		Planner:    sdfx.New(contours, side, tool, opts...),
		SpringPass: op.SpringPass,
	}
	if op.Tabs != nil {
		c.Tabs = layers.TabSpec{Count: op.Tabs.Count, WidthFactor: op.Tabs.WidthFactor}
		for _, pt := range op.Tabs.Points {
			c.Tabs.Points = append(c.Tabs.Points, pt.vec())
		}
	}
	return c, nil
}

func wallProfile(w Wall) (schedule.WallProfile, error) {
	switch w.Kind {
	case "draft":
		return profile.Draft{Angle: w.Angle}, nil
	case "chamfer":
		return profile.Chamfer{Width: w.Width}, nil
	case "roundover":
		return profile.Roundover{Radius: w.Radius}, nil
	case "script":
		s, evalErrs, err := profile.Compile(w.Script)
		if err != nil {
			return nil, fmt.Errorf("wall script: %w", err)
		}
		if len(evalErrs) > 0 {
			return nil, fmt.Errorf("wall script: %w", evalErrs[0])
		}
		return s, nil
	}
	return nil, errors.New("unknown wall profile " + w.Kind)
}

func transformOf(t Transform) toolpath.Transform {
	if t.Kind == "rigid" {
		return toolpath.Rigid{
			Angle:  t.Angle * math.Pi / 180,
			Offset: t.Offset.vec(),
		}
	}
	return toolpath.Wave{Amplitude: t.Amplitude, Wavelength: t.Wavelength, Step: t.Step}
}
