package job

import (
	"bytes"
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/chazu/layercam/pkg/gcode"
	"github.com/chazu/layercam/pkg/planar"
	"github.com/chazu/layercam/pkg/profile"
	"github.com/chazu/layercam/pkg/schedule"
	"github.com/chazu/layercam/pkg/toolpath"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
units: mm
machine:
  safe_z: 5
  semi_safe_z: 1
  tab_clearance: 0.5
spindle:
  rpm: 18000
  dwell: 2
output:
  split_large_arcs: true
tools:
  - name: 6mm
    diameter: 6
    hfeed: 1200
    vfeed: 300
    max_doc: 3
    stepover: 0.4
    plunge_feed_ratio: 0.5
  - name: 3mm
    diameter: 3
    hfeed: 800
    vfeed: 200
    max_doc: 1.5
    stepover: 0.4
    min_helix_diameter: 1
operations:
  - name: outline
    tool: 6mm
    side: outside
    contours:
      - rect: {min: [0, 0], max: [100, 60]}
    start_depth: 0
    depth: -12
    tab_depth: -9
    tabs: {count: 4, width_factor: 0.5}
  - name: pocket
    tool: 3mm
    side: inside
    contours:
      - circle: {center: [50, 30], radius: 10}
    depth: -6
    helical_entry: true
  - name: groove
    tool: 6mm
    side: "on"
    contours:
      - points: [[10, 10], [90, 10]]
        open: true
    depth: -1
`

func mustParse(t *testing.T, doc string) *Job {
	t.Helper()
	j, err := Parse([]byte(doc))
	require.NoError(t, err)
	return j
}

func TestParseSample(t *testing.T) {
	j := mustParse(t, sample)
	require.Len(t, j.Tools, 2)
	require.Len(t, j.Operations, 3)
	op := j.Operations[0]
	assert.Equal(t, "6mm", op.Tool)
	require.NotNil(t, op.TabDepth)
	assert.Equal(t, -9.0, *op.TabDepth)
	assert.Equal(t, Vec{100, 60}, op.Contours[0].Rect.Max)
	assert.Equal(t, Vec{90, 10}, j.Operations[2].Contours[0].Points[1])
	assert.Empty(t, Validate(j).Errors)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"empty", "", "empty job"},
		{"unknown key", "units: mm\nspeed: 3\n", "speed"},
		{"short point", "operations:\n  - contours:\n      - points: [[1, 2, 3]]\n", "2 coordinates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(j *Job)
		path   string
		sev    Severity
	}{
		{"units", func(j *Job) { j.Units = "cubits" }, "units", SeverityError},
		{"semi safe above safe", func(j *Job) { j.Machine.SemiSafeZ = 6 }, "machine.semi_safe_z", SeverityError},
		{"unknown tool", func(j *Job) { j.Operations[1].Tool = "9mm" }, "operations[1].tool", SeverityError},
		{"duplicate tool", func(j *Job) { j.Tools[1].Name = "6mm" }, "tools[1].name", SeverityError},
		{"zero diameter", func(j *Job) { j.Tools[0].Diameter = 0 }, "tools[0].diameter", SeverityError},
		{"no vfeed", func(j *Job) { j.Tools[0].VFeed = 0 }, "tools[0].vfeed", SeverityWarning},
		{"bad side", func(j *Job) { j.Operations[0].Side = "left" }, "operations[0].side", SeverityError},
		{"depth above start", func(j *Job) { j.Operations[1].Depth = 1 }, "operations[1].depth", SeverityError},
		{"start above safe z", func(j *Job) { j.Operations[1].StartDepth = 5 }, "operations[1].start_depth", SeverityError},
		{"tab too deep", func(j *Job) {
			d := -13.0
			j.Operations[0].TabDepth = &d
		}, "operations[0].tab_depth", SeverityError},
		{"tabs without depth", func(j *Job) { j.Operations[0].TabDepth = nil }, "operations[0].tabs", SeverityWarning},
		{"two shapes", func(j *Job) {
			j.Operations[0].Contours[0].Circle = &Circle{Radius: 1}
		}, "operations[0].contours[0]", SeverityError},
		{"two point polygon", func(j *Job) {
			j.Operations[2].Contours[0].Open = false
		}, "operations[2].contours[0].points", SeverityError},
		{"helix outside pocket", func(j *Job) { j.Operations[0].HelicalEntry = true }, "operations[0].helical_entry", SeverityWarning},
		{"wall kind", func(j *Job) { j.Operations[0].Wall = &Wall{Kind: "ogee"} }, "operations[0].wall.kind", SeverityError},
		{"empty script", func(j *Job) {
			j.Operations[0].Wall = &Wall{Kind: "script", Script: "  "}
			j.Operations[0].SublayerThickness = 0.5
		}, "operations[0].wall.script", SeverityError},
		{"wave without wavelength", func(j *Job) {
			j.Operations[0].Transform = &Transform{Kind: "wave", Amplitude: 1}
		}, "operations[0].transform.wavelength", SeverityError},
		{"no operations", func(j *Job) { j.Operations = nil }, "operations", SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := mustParse(t, sample)
			tt.mutate(j)
			r := Validate(j)
			list := r.Errors
			if tt.sev == SeverityWarning {
				list = r.Warnings
			}
			var paths []string
			for _, f := range list {
				paths = append(paths, f.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestReportErr(t *testing.T) {
	assert.NoError(t, Report{Warnings: []Finding{{Message: "w", Severity: SeverityWarning}}}.Err())

	r := Report{Errors: []Finding{
		{Path: "a", Message: "first"},
		{Message: "second"},
	}}
	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[error] a: first")
	assert.Contains(t, err.Error(), "[error] second")
	var f Finding
	assert.True(t, errors.As(err, &f))
}

func TestCompile(t *testing.T) {
	p, err := Compile(mustParse(t, sample))
	require.NoError(t, err)
	require.Len(t, p.Tasks, 3)

	assert.Same(t, p.Tasks[0].Tool, p.Tasks[2].Tool)
	assert.NotSame(t, p.Tasks[0].Tool, p.Tasks[1].Tool)
	assert.Equal(t, 4, p.Tasks[0].Tabs.Count)
	assert.True(t, p.Tasks[1].Props.AllowHelicalEntry)
	assert.True(t, p.Dialect.SplitLargeArcs)
	assert.Equal(t, gcode.Millimeters, p.Dialect.Units)
	for _, task := range p.Tasks {
		_, ok := task.Planner.(*planar.Serialized)
		assert.True(t, ok, task.Name)
	}
}

func TestCompileWallAndTransform(t *testing.T) {
	j := mustParse(t, sample)
	j.Units = "inch"
	j.Operations[0].Wall = &Wall{Kind: "chamfer", Width: 1}
	j.Operations[0].SublayerThickness = 0.5
	j.Operations[1].Wall = &Wall{Kind: "script", Script: "(* 0.1 (- total depth))"}
	j.Operations[1].SublayerThickness = 0.5
	j.Operations[2].Transform = &Transform{Kind: "rigid", Angle: 90}

	p, err := Compile(j)
	require.NoError(t, err)
	assert.Equal(t, gcode.Inches, p.Dialect.Units)
	assert.IsType(t, profile.Chamfer{}, p.Tasks[0].Props.WallProfile)
	assert.IsType(t, &profile.Script{}, p.Tasks[1].Props.WallProfile)

	got, err := p.Tasks[1].Props.WallProfile.Offset(1, 6)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)

	tr := transformOf(*j.Operations[2].Transform)
	r, ok := tr.(toolpath.Rigid)
	require.True(t, ok)
	assert.InDelta(t, 1.5707963, r.Angle, 1e-6)
}

func TestCompileRejectsInvalid(t *testing.T) {
	j := mustParse(t, sample)
	j.Tools[0].MaxDoc = 0
	_, err := Compile(j)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tools[0].max_doc")
}

func TestContourPaths(t *testing.T) {
	rect := Contour{Rect: &Rect{Min: Vec{0, 0}, Max: Vec{4, 2}}}.Path()
	assert.True(t, rect.Closed())
	assert.InDelta(t, 12, rect.Length(), 1e-9)
	assert.Equal(t, 1, rect.Orientation())

	circle := Contour{Circle: &Circle{Center: Vec{1, 1}, Radius: 2}}.Path()
	assert.True(t, circle.Closed())
	assert.InDelta(t, 4*3.14159265, circle.Length(), 1e-6)

	line := Contour{Points: []Vec{{0, 0}, {3, 4}}, Open: true}.Path()
	assert.False(t, line.Closed())
	assert.InDelta(t, 5, line.Length(), 1e-9)
}

func TestRunAllTasks(t *testing.T) {
	p, err := Compile(mustParse(t, sample))
	require.NoError(t, err)

	prog := &Progress{}
	results, err := (&Runner{Progress: prog}).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NoError(t, r.Err, r.Name)
		assert.Equal(t, p.Tasks[i].Name, r.Name)
		assert.NotEmpty(t, r.Commands, r.Name)
		assert.Positive(t, r.Layers, r.Name)
	}
	assert.Equal(t, "3mm", results[1].Tool)

	done, total := prog.Snapshot()
	assert.Positive(t, total)
	assert.Equal(t, total, done)
}

// feedDepths returns the Z targets of every cutting move.
func feedDepths(cmds []gcode.Command) []float64 {
	var zs []float64
	for _, c := range cmds {
		if c.IsMove() && c.Kind != gcode.KindRapid && !math.IsNaN(c.To.Z) {
			zs = append(zs, c.To.Z)
		}
	}
	return zs
}

func TestEveryLayerDepthIsCut(t *testing.T) {
	example, err := Load("../../examples/simple_box.yaml")
	require.NoError(t, err)
	jobs := map[string]*Job{"sample": mustParse(t, sample), "example": example}

	for name, j := range jobs {
		t.Run(name, func(t *testing.T) {
			p, err := Compile(j)
			require.NoError(t, err)
			results, err := (&Runner{}).Run(context.Background(), p)
			require.NoError(t, err)
			require.Len(t, results, len(p.Tasks))

			for i, r := range results {
				require.NoError(t, r.Err, r.Name)
				task := p.Tasks[i]
				zs := feedDepths(r.Commands)
				require.NotEmpty(t, zs, r.Name)
				assert.InDelta(t, task.Props.Depth, slices.Min(zs), 1e-9, "%s: deepest cut", r.Name)

				infos, err := schedule.Schedule(p.Machine, task.Props, task.Tool, task.Tabs.Enabled())
				require.NoError(t, err)
				for _, info := range infos {
					found := slices.ContainsFunc(zs, func(z float64) bool { return math.Abs(z-info.Depth) < 1e-9 })
					assert.True(t, found, "%s: nothing cut at layer depth %g", r.Name, info.Depth)
				}
			}
		})
	}
}

func TestFailedTaskKeepsSiblings(t *testing.T) {
	j := mustParse(t, sample)
	// A 6 mm tool cannot fit inside a 2 mm square.
	j.Operations[0].Side = "inside"
	j.Operations[0].Contours = []Contour{{Rect: &Rect{Min: Vec{0, 0}, Max: Vec{2, 2}}}}
	p, err := Compile(j)
	require.NoError(t, err)

	results, err := (&Runner{}).Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, planar.ErrDegenerateContour)
	assert.Empty(t, results[0].Commands)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.NotEmpty(t, results[2].Commands)
}

func TestRunCancelled(t *testing.T) {
	p, err := Compile(mustParse(t, sample))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := (&Runner{}).Run(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestByTool(t *testing.T) {
	a := &toolpath.Tool{Name: "a"}
	b := &toolpath.Tool{Name: "b"}
	tasks := []*Task{{Tool: a}, {Tool: b}, {Tool: a}, {Tool: b}, {Tool: b}}
	assert.Equal(t, [][]int{{0, 2}, {1, 3, 4}}, byTool(tasks))
}

func kinds(cmds []gcode.Command) []gcode.Kind {
	out := make([]gcode.Kind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind
	}
	return out
}

func TestProgramToolChanges(t *testing.T) {
	p := &Plan{Spindle: Spindle{RPM: 12000, Dwell: 1}}
	move := []gcode.Command{gcode.Rapid(v3.Vec{Z: 5})}
	results := []Result{
		{Name: "a", Tool: "t1", Commands: move},
		{Name: "b", Tool: "t1", Commands: move},
		{Name: "c", Tool: "t2", Err: errors.New("boom")},
		{Name: "d", Tool: "t2", Commands: move},
	}
	got := kinds(Program(p, results))
	assert.Equal(t, []gcode.Kind{
		gcode.KindComment, gcode.KindSpindleOn, gcode.KindDwell,
		gcode.KindComment, gcode.KindRapid,
		gcode.KindComment, gcode.KindRapid,
		gcode.KindComment,
		gcode.KindSpindleOff, gcode.KindComment, gcode.KindSpindleOn, gcode.KindDwell,
		gcode.KindComment, gcode.KindRapid,
		gcode.KindSpindleOff, gcode.KindEnd,
	}, got)
}

func TestProgramWithoutSpindle(t *testing.T) {
	got := kinds(Program(&Plan{}, nil))
	assert.Equal(t, []gcode.Kind{gcode.KindEnd}, got)
}

func TestWriteProgram(t *testing.T) {
	p, err := Compile(mustParse(t, sample))
	require.NoError(t, err)
	results, err := (&Runner{}).Run(context.Background(), p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p, results))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"G17", "G21", "G90", "(tool 6mm)", "M3 S18000", "G4 P2", "(outline)"}, lines[:7])
	assert.Equal(t, "M2", lines[len(lines)-1])
	assert.Equal(t, "M5", lines[len(lines)-2])
	assert.Contains(t, lines, "(tool 3mm)")
}

func TestExampleJobIsValid(t *testing.T) {
	j, err := Load("../../examples/simple_box.yaml")
	require.NoError(t, err)
	r := Validate(j)
	assert.Empty(t, r.Errors)
	p, err := Compile(j)
	require.NoError(t, err)
	require.Len(t, p.Tasks, 3)
	assert.Same(t, p.Tasks[0].Tool, p.Tasks[1].Tool)
	assert.True(t, p.Tasks[2].SpringPass)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read job")
}
