package job

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chazu/layercam/pkg/geom"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gopkg.in/yaml.v3"
)

// Job is the top level of a job file.
type Job struct {
	Units      string      `yaml:"units"` // mm (default) or inch
	Machine    Machine     `yaml:"machine"`
	Spindle    Spindle     `yaml:"spindle"`
	Output     Output      `yaml:"output"`
	Tools      []Tool      `yaml:"tools"`
	Operations []Operation `yaml:"operations"`
}

// Machine holds the clearance heights.
type Machine struct {
	SafeZ        float64 `yaml:"safe_z"`
	SemiSafeZ    float64 `yaml:"semi_safe_z"`
	TabClearance float64 `yaml:"tab_clearance"`
}

// Spindle settings. Dwell is in seconds and follows every spindle start.
type Spindle struct {
	RPM   float64 `yaml:"rpm"`
	Dwell float64 `yaml:"dwell"`
}

// Output tunes the generated program.
type Output struct {
	SplitLargeArcs bool `yaml:"split_large_arcs"`
}

// Tool is an end mill definition.
type Tool struct {
	Name             string  `yaml:"name"`
	Diameter         float64 `yaml:"diameter"`
	HFeed            float64 `yaml:"hfeed"`
	VFeed            float64 `yaml:"vfeed"`
	MaxDoc           float64 `yaml:"max_doc"`
	Stepover         float64 `yaml:"stepover"`
	Climb            bool    `yaml:"climb"`
	MinHelixDiameter float64 `yaml:"min_helix_diameter"`
	PlungeFeedRatio  float64 `yaml:"plunge_feed_ratio"`
	RampSlope        float64 `yaml:"ramp_slope"`
}

// Operation is one depth-layered cut.
type Operation struct {
	Name     string    `yaml:"name"`
	Tool     string    `yaml:"tool"`
	Side     string    `yaml:"side"` // outside (default), inside or on
	Contours []Contour `yaml:"contours"`

	StartDepth float64  `yaml:"start_depth"`
	Depth      float64  `yaml:"depth"`
	TabDepth   *float64 `yaml:"tab_depth"`
	Tabs       *Tabs    `yaml:"tabs"`
	Margin     float64  `yaml:"margin"`

	Wall              *Wall   `yaml:"wall"`
	SublayerThickness float64 `yaml:"sublayer_thickness"`
	OffsetTolerance   float64 `yaml:"offset_tolerance"`

	HelicalEntry bool       `yaml:"helical_entry"`
	SpringPass   bool       `yaml:"spring_pass"`
	Transform    *Transform `yaml:"transform"`
}

// Contour is one closed or open outline. Exactly one of Points, Circle and
// Rect is set.
type Contour struct {
	Points []Vec   `yaml:"points"`
	Open   bool    `yaml:"open"`
	Circle *Circle `yaml:"circle"`
	Rect   *Rect   `yaml:"rect"`
}

// Circle is a full circle contour.
type Circle struct {
	Center Vec     `yaml:"center"`
	Radius float64 `yaml:"radius"`
}

// Rect is an axis-aligned rectangle contour.
type Rect struct {
	Min Vec `yaml:"min"`
	Max Vec `yaml:"max"`
}

// Tabs holds the tab layout. Points place tabs by hand and take precedence
// over Count.
type Tabs struct {
	Count       int     `yaml:"count"`
	WidthFactor float64 `yaml:"width_factor"`
	Points      []Vec   `yaml:"points"`
}

// Wall selects the wall profile.
type Wall struct {
	Kind   string  `yaml:"kind"` // draft, chamfer, roundover or script
	Angle  float64 `yaml:"angle"`
	Width  float64 `yaml:"width"`
	Radius float64 `yaml:"radius"`
	Script string  `yaml:"script"`
}

// Transform perturbs or moves every toolpath of an operation.
type Transform struct {
	Kind       string  `yaml:"kind"` // wave or rigid
	Amplitude  float64 `yaml:"amplitude"`
	Wavelength float64 `yaml:"wavelength"`
	Step       float64 `yaml:"step"`
	Angle      float64 `yaml:"angle"` // degrees
	Offset     Vec     `yaml:"offset"`
	// Skin bakes the transform into the planned path and keeps the plain
	// path for layers below the tabs.
	Skin bool `yaml:"skin"`
}

// Vec is an [x, y] pair.
type Vec [2]float64

// UnmarshalYAML accepts a two-element sequence.
func (v *Vec) UnmarshalYAML(node *yaml.Node) error {
	var xs []float64
	if err := node.Decode(&xs); err != nil {
		return err
	}
	if len(xs) != 2 {
		return fmt.Errorf("line %d: a point needs 2 coordinates, got %d", node.Line, len(xs))
	}
	v[0], v[1] = xs[0], xs[1]
	return nil
}

func (v Vec) vec() v2.Vec { return v2.Vec{X: v[0], Y: v[1]} }

// Path builds the contour geometry.
func (c Contour) Path() *geom.Path {
	switch {
	case c.Circle != nil:
		ctr, r := c.Circle.Center.vec(), c.Circle.Radius
		return geom.NewPath([]geom.Node{
			geom.ArcNode(geom.NewArc(ctr, r, 0, math.Pi)),
			geom.ArcNode(geom.NewArc(ctr, r, math.Pi, math.Pi)),
		}, true)
	case c.Rect != nil:
		lo, hi := c.Rect.Min.vec(), c.Rect.Max.vec()
		return geom.FromPoints(true, lo, v2.Vec{X: hi.X, Y: lo.Y}, hi, v2.Vec{X: lo.X, Y: hi.Y})
	default:
		pts := make([]v2.Vec, len(c.Points))
		for i, p := range c.Points {
			pts[i] = p.vec()
		}
		return geom.FromPoints(!c.Open, pts...)
	}
}

// Load reads and parses a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	j, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return j, nil
}

// Parse decodes a job document. Unknown keys are rejected.
func Parse(data []byte) (*Job, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var j Job
	if err := dec.Decode(&j); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty job")
		}
		return nil, fmt.Errorf("parse job: %w", err)
	}
	return &j, nil
}
