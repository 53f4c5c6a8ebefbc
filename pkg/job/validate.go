package job

import (
	"errors"
	"fmt"

	"github.com/chazu/layercam/pkg/planar"
	"github.com/chazu/layercam/pkg/profile"
)

// Severity says whether a finding blocks the job.
type Severity int

const (
	SeverityError   Severity = iota // blocks compilation
	SeverityWarning                 // logged, job still runs
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Finding is one validation result. Path locates the offending key, for
// example "operations[1].tabs.count".
type Finding struct {
	Path     string
	Message  string
	Severity Severity
}

func (f Finding) Error() string {
	if f.Path == "" {
		return fmt.Sprintf("[%s] %s", f.Severity, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Path, f.Message)
}

// Report separates blocking errors from warnings.
type Report struct {
	Errors   []Finding
	Warnings []Finding
}

// Err joins the blocking findings, or returns nil when there are none.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, f := range r.Errors {
		errs[i] = f
	}
	return errors.Join(errs...)
}

type findings []Finding

func (fs *findings) errorf(path, format string, args ...any) {
	*fs = append(*fs, Finding{Path: path, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
}

func (fs *findings) warnf(path, format string, args ...any) {
	*fs = append(*fs, Finding{Path: path, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

// Validate checks the whole job and returns every finding. It never
// modifies the job.
func Validate(j *Job) Report {
	var fs findings
	validateGlobal(j, &fs)
	tools := validateTools(j, &fs)
	for i := range j.Operations {
		validateOperation(j, i, tools, &fs)
	}

	var r Report
	for _, f := range fs {
		if f.Severity == SeverityError {
			r.Errors = append(r.Errors, f)
		} else {
			r.Warnings = append(r.Warnings, f)
		}
	}
	return r
}

func validateGlobal(j *Job, fs *findings) {
	switch j.Units {
	case "", "mm", "inch":
	default:
		fs.errorf("units", "unknown units %q, want mm or inch", j.Units)
	}
	if j.Machine.SemiSafeZ > j.Machine.SafeZ {
		fs.errorf("machine.semi_safe_z", "semi-safe Z %g is above safe Z %g", j.Machine.SemiSafeZ, j.Machine.SafeZ)
	}
	if j.Machine.TabClearance < 0 {
		fs.errorf("machine.tab_clearance", "must not be negative")
	}
	if j.Spindle.RPM < 0 {
		fs.errorf("spindle.rpm", "must not be negative")
	}
	if j.Spindle.Dwell < 0 {
		fs.errorf("spindle.dwell", "must not be negative")
	}
	if len(j.Operations) == 0 {
		fs.errorf("operations", "job has no operations")
	}
}

// validateTools returns the set of usable tool names.
func validateTools(j *Job, fs *findings) map[string]bool {
	names := make(map[string]bool)
	for i, t := range j.Tools {
		p := fmt.Sprintf("tools[%d]", i)
		switch {
		case t.Name == "":
			fs.errorf(p+".name", "tool needs a name")
		case names[t.Name]:
			fs.errorf(p+".name", "duplicate tool %q", t.Name)
		default:
			names[t.Name] = true
		}
		if t.Diameter <= 0 {
			fs.errorf(p+".diameter", "must be positive")
		}
		if t.HFeed <= 0 {
			fs.errorf(p+".hfeed", "must be positive")
		}
		if t.VFeed < 0 {
			fs.errorf(p+".vfeed", "must not be negative")
		} else if t.VFeed == 0 {
			fs.warnf(p+".vfeed", "no plunge feed, plunges use the horizontal feed")
		}
		if t.MaxDoc <= 0 {
			fs.errorf(p+".max_doc", "must be positive")
		}
		if t.Stepover < 0 || t.Stepover > 1 {
			fs.errorf(p+".stepover", "%g is outside [0, 1]", t.Stepover)
		}
		if t.PlungeFeedRatio < 0 || t.PlungeFeedRatio > 1 {
			fs.errorf(p+".plunge_feed_ratio", "%g is outside [0, 1]", t.PlungeFeedRatio)
		}
		if t.RampSlope < 0 {
			fs.errorf(p+".ramp_slope", "must not be negative")
		}
		if t.MinHelixDiameter < 0 {
			fs.errorf(p+".min_helix_diameter", "must not be negative")
		}
	}
	return names
}

func validateOperation(j *Job, i int, tools map[string]bool, fs *findings) {
	op := j.Operations[i]
	p := fmt.Sprintf("operations[%d]", i)
	if op.Name == "" {
		fs.warnf(p+".name", "unnamed operation")
	}
	if !tools[op.Tool] {
		fs.errorf(p+".tool", "unknown tool %q", op.Tool)
	}
	side, ok := planar.ParseSide(op.Side)
	if !ok {
		fs.errorf(p+".side", "unknown side %q, want outside, inside or on", op.Side)
	}

	if len(op.Contours) == 0 {
		fs.errorf(p+".contours", "operation has no contours")
	}
	for k, c := range op.Contours {
		validateContour(c, side, fmt.Sprintf("%s.contours[%d]", p, k), fs)
	}

	if op.StartDepth <= op.Depth {
		fs.errorf(p+".depth", "depth %g is not below start depth %g", op.Depth, op.StartDepth)
	}
	if j.Machine.SafeZ <= op.StartDepth {
		fs.errorf(p+".start_depth", "start depth %g is not below safe Z %g", op.StartDepth, j.Machine.SafeZ)
	}
	if op.TabDepth != nil {
		switch {
		case *op.TabDepth < op.Depth:
			fs.errorf(p+".tab_depth", "tab depth %g is below final depth %g", *op.TabDepth, op.Depth)
		case *op.TabDepth > op.StartDepth:
			fs.warnf(p+".tab_depth", "tab depth %g is above start depth, tabs are never cut", *op.TabDepth)
		}
	}
	if op.Tabs != nil {
		validateTabs(op, p+".tabs", fs)
	} else if op.TabDepth != nil {
		fs.warnf(p+".tab_depth", "tab depth set without tabs")
	}
	if op.Margin < 0 {
		fs.warnf(p+".margin", "negative margin %g cuts into the part", op.Margin)
	}

	if op.Wall != nil {
		validateWall(*op.Wall, p+".wall", fs)
		if op.SublayerThickness <= 0 {
			fs.warnf(p+".sublayer_thickness", "wall profile without sublayers is only followed at major layers")
		}
	}
	if op.SublayerThickness < 0 {
		fs.errorf(p+".sublayer_thickness", "must not be negative")
	}
	if op.OffsetTolerance < 0 {
		fs.errorf(p+".offset_tolerance", "must not be negative")
	}
	if op.HelicalEntry && side != planar.Inside {
		fs.warnf(p+".helical_entry", "helical entries are only placed inside pockets")
	}
	if op.Transform != nil {
		validateTransform(*op.Transform, p+".transform", fs)
	}
}

func validateContour(c Contour, side planar.Side, p string, fs *findings) {
	kinds := 0
	if len(c.Points) > 0 {
		kinds++
	}
	if c.Circle != nil {
		kinds++
	}
	if c.Rect != nil {
		kinds++
	}
	if kinds != 1 {
		fs.errorf(p, "set exactly one of points, circle and rect")
		return
	}
	switch {
	case c.Circle != nil:
		if c.Circle.Radius <= 0 {
			fs.errorf(p+".circle.radius", "must be positive")
		}
	case c.Rect != nil:
		if c.Rect.Max[0] <= c.Rect.Min[0] || c.Rect.Max[1] <= c.Rect.Min[1] {
			fs.errorf(p+".rect", "max must lie above and right of min")
		}
	default:
		if !c.Open && len(c.Points) < 3 {
			fs.errorf(p+".points", "a closed contour needs at least 3 points, got %d", len(c.Points))
		}
		if c.Open && len(c.Points) < 2 {
			fs.errorf(p+".points", "an open contour needs at least 2 points, got %d", len(c.Points))
		}
		if c.Open && side != planar.On {
			fs.warnf(p+".open", "open contours are cut on the line")
		}
	}
}

func validateTabs(op Operation, p string, fs *findings) {
	t := op.Tabs
	if t.Count < 0 {
		fs.errorf(p+".count", "must not be negative")
	}
	if t.WidthFactor < 0 {
		fs.errorf(p+".width_factor", "must not be negative")
	}
	if t.Count > 0 && len(t.Points) > 0 {
		fs.warnf(p+".count", "ignored, tab points are given")
	}
	if (t.Count > 0 || len(t.Points) > 0) && op.TabDepth == nil {
		fs.warnf(p, "tabs without tab_depth are never cut")
	}
}

func validateWall(w Wall, p string, fs *findings) {
	switch w.Kind {
	case "draft":
		if w.Angle < 0 || w.Angle >= 90 {
			fs.errorf(p+".angle", "draft angle %g is outside [0, 90)", w.Angle)
		}
	case "chamfer":
		if w.Width <= 0 {
			fs.errorf(p+".width", "must be positive")
		}
	case "roundover":
		if w.Radius <= 0 {
			fs.errorf(p+".radius", "must be positive")
		}
	case "script":
		_, evalErrs, err := profile.Compile(w.Script)
		if err != nil {
			fs.errorf(p+".script", "%v", err)
		}
		for _, e := range evalErrs {
			fs.errorf(p+".script", "%s", e.Error())
		}
	default:
		fs.errorf(p+".kind", "unknown wall profile %q, want draft, chamfer, roundover or script", w.Kind)
	}
}

func validateTransform(t Transform, p string, fs *findings) {
	switch t.Kind {
	case "wave":
		if t.Wavelength <= 0 {
			fs.errorf(p+".wavelength", "must be positive")
		}
		if t.Amplitude == 0 {
			fs.warnf(p+".amplitude", "zero amplitude leaves paths unchanged")
		}
		if t.Step < 0 {
			fs.errorf(p+".step", "must not be negative")
		}
	case "rigid":
		if t.Skin {
			fs.warnf(p+".skin", "a rigid transform gains nothing from a skin")
		}
	default:
		fs.errorf(p+".kind", "unknown transform %q, want wave or rigid", t.Kind)
	}
}
