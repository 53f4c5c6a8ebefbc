package gcode

import (
	"bytes"
	"math"
	"strings"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, d Dialect, cmds ...Command) []string {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, d)
	require.NoError(t, w.Write(cmds...))
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	assert.Equal(t, len(lines), w.Lines())
	return lines
}

func TestFormat(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     string
	}{
		{1.5, 3, "1.5"},
		{2, 3, "2"},
		{-0.0001, 3, "0"},
		{0.00049, 3, "0"},
		{0.0005, 4, "0.0005"},
		{12.34567, 3, "12.346"},
		{-3.10, 3, "-3.1"},
		{100, 3, "100"},
		{18000, 0, "18000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := format(tt.v, tt.decimals); got != tt.want {
				t.Errorf("format(%g, %d) = %q, want %q", tt.v, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestBegin(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, Dialect{}).Begin())
	assert.Equal(t, "G17\nG21\nG90\n", buf.String())

	buf.Reset()
	require.NoError(t, NewWriter(&buf, Dialect{Units: Inches}).Begin())
	assert.Equal(t, "G17\nG20\nG90\n", buf.String())
}

func TestDuplicateMovesCollapse(t *testing.T) {
	lines := render(t, Dialect{},
		Rapid(v3.Vec{X: 1, Y: 2, Z: 5}),
		Rapid(v3.Vec{X: 1, Y: 2, Z: 5}),
		Linear(v3.Vec{X: 1, Y: 2, Z: 5}, 300),
		Linear(v3.Vec{X: 1.0001, Y: 2, Z: 5}, 300),
	)
	assert.Equal(t, []string{"G0 X1 Y2 Z5"}, lines)
}

func TestUnchangedAxesOmitted(t *testing.T) {
	lines := render(t, Dialect{},
		Rapid(v3.Vec{X: 0, Y: 0, Z: 5}),
		Rapid(v3.Vec{X: 10, Y: 0, Z: 5}),
		Linear(v3.Vec{X: 10, Y: 0, Z: -1}, 100),
	)
	assert.Equal(t, []string{"G0 X0 Y0 Z5", "G0 X10", "F100", "G1 Z-1"}, lines)
}

func TestFeedOnlyWhenChanged(t *testing.T) {
	lines := render(t, Dialect{},
		Linear(v3.Vec{X: 1}, 600),
		Linear(v3.Vec{X: 2}, 600),
		Linear(v3.Vec{X: 3}, 300),
		Linear(v3.Vec{X: 4}, 300),
		Rapid(v3.Vec{X: 5}),
		Linear(v3.Vec{X: 6}, 300),
	)
	assert.Equal(t, []string{
		"F600", "G1 X1 Y0 Z0",
		"G1 X2",
		"F300", "G1 X3",
		"G1 X4",
		"G0 X5",
		"G1 X6",
	}, lines)
}

func TestDroppedMoveKeepsFeedPending(t *testing.T) {
	lines := render(t, Dialect{},
		Rapid(v3.Vec{X: 1}),
		Linear(v3.Vec{X: 1}, 200),
		Linear(v3.Vec{X: 2}, 200),
	)
	assert.Equal(t, []string{"G0 X1 Y0 Z0", "F200", "G1 X2"}, lines)
}

func TestArcWords(t *testing.T) {
	lines := render(t, Dialect{},
		Rapid(v3.Vec{X: 10, Y: 0}),
		Arc(v3.Vec{X: 0, Y: 10}, v2.Vec{}, false, 400),
		Arc(v3.Vec{X: 10, Y: 0, Z: -0.5}, v2.Vec{}, true, 400),
	)
	assert.Equal(t, []string{
		"G0 X10 Y0 Z0",
		"F400",
		"G3 X0 Y10 I-10 J0",
		"G2 X10 Y0 Z-0.5 I0 J-10",
	}, lines)
}

func TestLargeArcSplit(t *testing.T) {
	full := []Command{
		Rapid(v3.Vec{X: 5, Y: 0}),
		Arc(v3.Vec{X: 5, Y: 0, Z: -1}, v2.Vec{}, false, 100),
	}
	lines := render(t, Dialect{SplitLargeArcs: true}, full...)
	assert.Equal(t, []string{
		"G0 X5 Y0 Z0",
		"F100",
		"G3 X-5 Y0 Z-0.5 I-5 J0",
		"G3 X5 Y0 Z-1 I5 J0",
	}, lines)

	lines = render(t, Dialect{}, full...)
	assert.Equal(t, []string{"G0 X5 Y0 Z0", "F100", "G3 X5 Y0 Z-1 I-5 J0"}, lines)

	// Three quarters clockwise from (5,0) ends at (0,5).
	lines = render(t, Dialect{SplitLargeArcs: true},
		Rapid(v3.Vec{X: 5, Y: 0}),
		Arc(v3.Vec{X: 0, Y: 5}, v2.Vec{}, true, 100),
	)
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "G2 X-3.536 Y-3.536"), lines[2])

	// A half circle stays whole.
	lines = render(t, Dialect{SplitLargeArcs: true},
		Rapid(v3.Vec{X: 5, Y: 0}),
		Arc(v3.Vec{X: -5, Y: 0}, v2.Vec{}, false, 100),
	)
	assert.Len(t, lines, 3)
}

func TestMachineWords(t *testing.T) {
	lines := render(t, Dialect{Units: Inches},
		Comment("start (roughing)"),
		SpindleOn(18000),
		Dwell(2.5),
		Rapid(v3.Vec{X: 0.12345}),
		SpindleOff(),
		End(),
	)
	assert.Equal(t, []string{
		"(start [roughing])",
		"M3 S18000",
		"G4 P2.5",
		"G0 X0.1235 Y0 Z0",
		"M5",
		"M2",
	}, lines)
}

func TestArcSpan(t *testing.T) {
	c := v2.Vec{}
	assert.InDelta(t, 1.5707963, arcSpan(v3.Vec{X: 1}, v3.Vec{Y: 1}, c, false), 1e-6)
	assert.InDelta(t, -4.712389, arcSpan(v3.Vec{X: 1}, v3.Vec{Y: 1}, c, true), 1e-6)
	assert.InDelta(t, -6.2831853, arcSpan(v3.Vec{X: 1}, v3.Vec{X: 1}, c, true), 1e-6)
}

func TestUnknownAxesLeftOut(t *testing.T) {
	nan := math.NaN()
	lines := render(t, Dialect{},
		Rapid(v3.Vec{X: nan, Y: nan, Z: 5}),
		Rapid(v3.Vec{X: 3, Y: 4, Z: nan}),
		Rapid(v3.Vec{X: 3, Y: 4, Z: 5}),
	)
	assert.Equal(t, []string{"G0 Z5", "G0 X3 Y4"}, lines)
}
